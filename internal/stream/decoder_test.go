package stream

import "testing"

func TestGenericDecoder_DecodeTrade(t *testing.T) {
	raw := []byte(`{"ts_ms":1700000000000,"symbol":"BTC-USD","price":42000.5,"size":0.25,"isBuyerMaker":true}`)
	tr, ok, err := (GenericDecoder{}).DecodeTrade(raw)
	if err != nil || !ok {
		t.Fatalf("expected decode ok, got ok=%v err=%v", ok, err)
	}
	if tr.Symbol != "BTC-USD" || tr.Price != 42000.5 || tr.Size != 0.25 {
		t.Fatalf("unexpected trade: %+v", tr)
	}
	if tr.TakerSide() != "sell" {
		t.Fatalf("expected sell for isBuyerMaker=true, got %s", tr.TakerSide())
	}
}

func TestGenericDecoder_DecodeDepthFullAndIncremental(t *testing.T) {
	full := []byte(`{"ts_ms":1,"symbol":"BTC-USD","bids":[[100,1],[99,2]],"asks":[[101,1]]}`)
	d, ok, err := (GenericDecoder{}).DecodeDepth(full)
	if err != nil || !ok {
		t.Fatalf("expected decode ok, got ok=%v err=%v", ok, err)
	}
	if d.Incremental {
		t.Fatal("expected full snapshot, got incremental")
	}
	if len(d.Bids) != 2 || len(d.Asks) != 1 {
		t.Fatalf("unexpected levels: %+v", d)
	}

	incr := []byte(`{"ts_ms":2,"symbol":"BTC-USD","firstSeq":10,"lastSeq":12,"bids":[[100,0]],"asks":[]}`)
	d2, ok, err := (GenericDecoder{}).DecodeDepth(incr)
	if err != nil || !ok {
		t.Fatalf("expected decode ok, got ok=%v err=%v", ok, err)
	}
	if !d2.Incremental || d2.FirstUpdateID != 10 || d2.FinalUpdateID != 12 {
		t.Fatalf("unexpected incremental decode: %+v", d2)
	}
}

func TestGenericDecoder_IsPing(t *testing.T) {
	payload, ok := (GenericDecoder{}).IsPing([]byte(`{"ping":7}`))
	if !ok || string(payload) != `{"pong":7}` {
		t.Fatalf("unexpected ping response: ok=%v payload=%s", ok, payload)
	}

	if _, ok := (GenericDecoder{}).IsPing([]byte(`{"ts_ms":1,"symbol":"X","price":1,"size":1,"isBuyerMaker":false}`)); ok {
		t.Fatal("expected trade frame to not be classified as ping")
	}
}

func TestGenericDecoder_SubscribeFrame(t *testing.T) {
	frame, err := (GenericDecoder{}).SubscribeFrame([]string{"btcusd@trade", "btcusd@depth"}, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"method":"SUBSCRIBE","params":["btcusd@trade","btcusd@depth"],"id":7}`
	if string(frame) != want {
		t.Fatalf("unexpected frame: %s", frame)
	}
}
