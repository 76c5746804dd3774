// Package stream implements C3: the Stream Client Pool. It subscribes to
// the Cartesian product of {venue, marketType} × symbol-shard, runs one
// state-machine-driven connection per shard, and applies inbound messages
// to the shared depth.Store, emitting a resync barrier on every
// reconnect.
//
// Grounded on the teacher's exchanges/binance/book.go dial-loop/ping-pong
// idiom and internal/micro/collectors/base.go's ctx/cancel/WaitGroup
// lifecycle, generalized from one hardcoded exchange to a Decoder
// abstraction so any venue's wire format can plug in.
package stream

import "time"

// Trade is the canonical aggregated-trade event of §6: taker side is
// derived as "sell" when IsBuyerMaker is true, "buy" otherwise.
type Trade struct {
	Venue        string
	Symbol       string // wire-form symbol as received
	Market       string
	Price        float64
	Size         float64
	IsBuyerMaker bool
	Ts           time.Time
}

// TakerSide returns "buy" or "sell" derived from IsBuyerMaker per §6.
func (t Trade) TakerSide() string {
	if t.IsBuyerMaker {
		return "sell"
	}
	return "buy"
}

// WireLevel is one (price, size) pair as received on the wire; a Size of
// 0 denotes removal in incremental mode.
type WireLevel struct {
	Price float64
	Size  float64
}

// DepthMessage is either shape named in §6: a full top-N replacement or an
// incremental diff carrying firstSeq/lastSeq.
type DepthMessage struct {
	Symbol        string
	Incremental   bool
	FirstUpdateID int64
	FinalUpdateID int64
	Bids          []WireLevel
	Asks          []WireLevel
	Ts            time.Time
}

// Decoder translates one venue's raw wire frames into the generic shapes
// the core pipeline consumes. Exactly one of the three Decode return kinds
// fires per call; callers dispatch on which bool is true.
type Decoder interface {
	// DecodeTrade reports ok=true if raw is an aggregated-trade frame.
	DecodeTrade(raw []byte) (t Trade, ok bool, err error)
	// DecodeDepth reports ok=true if raw is a depth snapshot or diff frame.
	DecodeDepth(raw []byte) (d DepthMessage, ok bool, err error)
	// IsPing reports whether raw is a peer ping frame needing a pong with
	// the same payload (§6 control messages).
	IsPing(raw []byte) (payload []byte, ok bool)
	// SubscribeFrame builds the subscription control message for the given
	// wire-form stream names (§6: {"method":"SUBSCRIBE","params":[...],"id":n}).
	SubscribeFrame(streams []string, id int) ([]byte, error)
}
