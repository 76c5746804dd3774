package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// GenericDecoder implements Decoder for the literal wire shapes of §6:
// an aggregated trade `{ts_ms, symbol, price, size, isBuyerMaker}`, a full
// depth snapshot `{ts_ms, symbol, bids, asks}`, an incremental diff adding
// `firstSeq`/`lastSeq`, and an application-level `{"ping": n}` needing a
// `{"pong": n}` reply. Venues whose wire format differs implement their
// own Decoder; this one backs the replay harness (C13) and any venue that
// speaks the generic shape directly.
type GenericDecoder struct{}

type genericTrade struct {
	TsMs         int64   `json:"ts_ms"`
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Size         float64 `json:"size"`
	IsBuyerMaker *bool   `json:"isBuyerMaker"`
}

type genericDepth struct {
	TsMs     int64       `json:"ts_ms"`
	Symbol   string      `json:"symbol"`
	FirstSeq *int64      `json:"firstSeq"`
	LastSeq  *int64      `json:"lastSeq"`
	Bids     [][]float64 `json:"bids"`
	Asks     [][]float64 `json:"asks"`
}

type genericPing struct {
	Ping *int64 `json:"ping"`
}

func (GenericDecoder) DecodeTrade(raw []byte) (Trade, bool, error) {
	var t genericTrade
	if err := json.Unmarshal(raw, &t); err != nil {
		return Trade{}, false, nil
	}
	if t.IsBuyerMaker == nil || t.Symbol == "" {
		return Trade{}, false, nil
	}
	return Trade{
		Symbol:       t.Symbol,
		Price:        t.Price,
		Size:         t.Size,
		IsBuyerMaker: *t.IsBuyerMaker,
		Ts:           time.UnixMilli(t.TsMs),
	}, true, nil
}

func (GenericDecoder) DecodeDepth(raw []byte) (DepthMessage, bool, error) {
	var d genericDepth
	if err := json.Unmarshal(raw, &d); err != nil {
		return DepthMessage{}, false, nil
	}
	if d.Symbol == "" || (len(d.Bids) == 0 && len(d.Asks) == 0) {
		return DepthMessage{}, false, nil
	}
	msg := DepthMessage{
		Symbol: d.Symbol,
		Bids:   toWireLevels(d.Bids),
		Asks:   toWireLevels(d.Asks),
		Ts:     time.UnixMilli(d.TsMs),
	}
	if d.FirstSeq != nil && d.LastSeq != nil {
		msg.Incremental = true
		msg.FirstUpdateID = *d.FirstSeq
		msg.FinalUpdateID = *d.LastSeq
	}
	return msg, true, nil
}

func (GenericDecoder) IsPing(raw []byte) ([]byte, bool) {
	var p genericPing
	if err := json.Unmarshal(raw, &p); err != nil || p.Ping == nil {
		return nil, false
	}
	return []byte(fmt.Sprintf(`{"pong":%d}`, *p.Ping)), true
}

func (GenericDecoder) SubscribeFrame(streams []string, id int) ([]byte, error) {
	return json.Marshal(struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int      `json:"id"`
	}{Method: "SUBSCRIBE", Params: streams, ID: id})
}

func toWireLevels(in [][]float64) []WireLevel {
	out := make([]WireLevel, 0, len(in))
	for _, e := range in {
		if len(e) < 2 {
			continue
		}
		out = append(out, WireLevel{Price: e[0], Size: e[1]})
	}
	return out
}
