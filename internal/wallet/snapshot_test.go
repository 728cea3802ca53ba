package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSerialize_RoundTrip(t *testing.T) {
	env := newTestWallet(t, testTokenAsset(t), true)
	w := env.wallet
	env.node.setTokenBalance(testContract, w.Address(), "1234", "1200")
	env.node.counts[w.Address()] = 9
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	data, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	for _, key := range []string{"crypto", "balance", "confirmedBalance", "txsCount", "privateKey", "addressString", "gasPrice", "gasLimit", "minConf", "chainId", "networkId"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("snapshot missing %q", key)
		}
	}
	if fields["gasLimit"] != "200000" {
		t.Errorf("gasLimit = %v, want \"200000\"", fields["gasLimit"])
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if got.Address() != w.Address() {
		t.Errorf("address = %s, want %s", got.Address(), w.Address())
	}
	if !got.Balance().Equal(w.Balance()) || !got.ConfirmedBalance().Equal(w.ConfirmedBalance()) {
		t.Errorf("balance = %s/%s, want %s/%s", got.Balance(), got.ConfirmedBalance(), w.Balance(), w.ConfirmedBalance())
	}
	if got.TxsCount() != 9 {
		t.Errorf("TxsCount() = %d, want 9", got.TxsCount())
	}
	if got.MinConf() != w.MinConf() || got.Network() != w.Network() {
		t.Errorf("minConf/network = %d/%+v", got.MinConf(), got.Network())
	}
	tok, ok := got.Asset().(Token)
	if !ok || tok.Contract.String() != testContract {
		t.Errorf("asset = %v, want token %s", got.Asset(), testContract)
	}

	fee, want := got.Fee(), w.Fee()
	if fee.Mode != FeeLegacy || fee.GasLimit != TokenGasLimit || !fee.GasPrice.Equal(want.GasPrice) {
		t.Errorf("fee = %+v, want %+v", fee, want)
	}

	gotKeys, _ := got.ExportPrivateKeys()
	wantKeys, _ := w.ExportPrivateKeys()
	if gotKeys != wantKeys {
		t.Error("restored wallet holds a different key")
	}
}

func TestSerialize_Locked(t *testing.T) {
	w := newTestWallet(t, nil, false).wallet
	w.Lock()
	if _, err := w.Serialize(); !errors.Is(err, ErrWalletLocked) {
		t.Errorf("Serialize() error = %v, want ErrWalletLocked", err)
	}
}

func TestDeserialize_Offline(t *testing.T) {
	w := newTestWallet(t, nil, false).wallet
	data, err := w.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error: %v", err)
	}
	if err := got.Load(context.Background()); !errors.Is(err, ErrNodeError) {
		t.Errorf("Load() before Connect error = %v, want ErrNodeError", err)
	}

	node := newFakeNode()
	node.setBalance(got.Address(), "55", "55")
	got.Connect(node, &fakeLister{}, nil)
	if err := got.Load(context.Background()); err != nil {
		t.Fatalf("Load() after Connect error: %v", err)
	}
	if got.Balance().String() != "55" {
		t.Errorf("Balance() = %s, want 55", got.Balance())
	}
}

func TestDeserialize_Errors(t *testing.T) {
	w := newTestWallet(t, nil, false).wallet
	data, _ := w.Serialize()

	withField := func(key string, v any) string {
		var fields map[string]any
		json.Unmarshal(data, &fields)
		if v == nil {
			delete(fields, key)
		} else {
			fields[key] = v
		}
		out, _ := json.Marshal(fields)
		return string(out)
	}

	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"bad key", `{"crypto":{"type":"coin"},"privateKey":"zz"}`},
		{"bad asset", `{"crypto":{"type":"nft"},"privateKey":"` + ownKeyHex + `"}`},
		{"address mismatch", withField("addressString", testRecipient)},
		{"missing chain id", withField("chainId", nil)},
		{"zero chain id", withField("chainId", 0)},
		{"negative chain id", withField("chainId", -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Deserialize([]byte(tt.data)); err == nil {
				t.Error("Deserialize() should fail")
			}
		})
	}
}
