// MODUL: gguf_test
// ZWECK: Tests fuer Encode/Decode und Roundtrip-Identitaet
// INPUT: Synthetische Container
// OUTPUT: Testresultate
// NEBENEFFEKTE: temporaere Dateien
// ABHAENGIGKEITEN: testing, go-cmp, x448/float16

package gguf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/x448/float16"

	"github.com/7blacky7/tensorwerk/ggml"
)

// writeTestFile schreibt einen Container und liest die Bytes zurueck
func writeTestFile(t *testing.T, kv *KV, ts []*TensorInfo) (string, []byte) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.gguf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := Write(f, kv, ts); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return path, raw
}

// f16Payload kodiert float32-Werte als F16-Payload
func f16Payload(vals []float32) []byte {
	out := make([]byte, 2*len(vals))
	for i, v := range vals {
		bits := float16.Fromfloat32(v).Bits()
		out[2*i] = byte(bits)
		out[2*i+1] = byte(bits >> 8)
	}
	return out
}

// TestRoundtripScenario: Alignment-Override, Float-Array, String und
// ein F16-Tensor der Form [3,2]
func TestRoundtripScenario(t *testing.T) {
	kv := NewKV()
	kv.Set("general.alignment", uint32(64))
	kv.Set("foo", []float32{1, 2, 3})
	kv.Set("bar", "hi")

	payload := f16Payload([]float32{1, 2, 3, 4, 5, 6})
	ts := []*TensorInfo{{
		Name:  "weights",
		Shape: []uint64{3, 2},
		Type:  ggml.TypeF16,
		Data:  payload,
	}}

	path, raw := writeTestFile(t, kv, ts)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := Decode(f, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Version != Version {
		t.Errorf("Version = %d, erwartet %d", got.Version, Version)
	}
	if got.KV.Uint("general.alignment", 0) != 64 {
		t.Errorf("Alignment = %d, erwartet 64", got.KV.Uint("general.alignment", 0))
	}
	if diff := cmp.Diff([]float32{1, 2, 3}, got.KV.Floats("foo")); diff != "" {
		t.Errorf("foo (-want +got):\n%s", diff)
	}
	if got.KV.String("bar") != "hi" {
		t.Errorf("bar = %q, erwartet \"hi\"", got.KV.String("bar"))
	}

	info, err := got.TensorInfo("weights")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint64{3, 2}, info.Shape); diff != "" {
		t.Errorf("Shape (-want +got):\n%s", diff)
	}
	if info.Type != ggml.TypeF16 {
		t.Errorf("Type = %v, erwartet f16", info.Type)
	}
	if !bytes.Equal(info.Data, payload) {
		t.Error("Payload nicht wertidentisch")
	}

	// Payload beginnt am 64er-Alignment
	if got.TensorOffset%64 != 0 {
		t.Errorf("TensorOffset = %d nicht auf 64 ausgerichtet", got.TensorOffset)
	}

	// erneutes Schreiben ist byte-identisch (P10)
	path2 := filepath.Join(t.TempDir(), "rewrite.gguf")
	f2, err := os.Create(path2)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	if err := Write(f2, got.KV, got.Tensors); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	raw2, err := os.ReadFile(path2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, raw2) {
		t.Error("Rewrite nicht byte-identisch")
	}
}

// TestAllValueTypes deckt alle KV-Werttypen ab
func TestAllValueTypes(t *testing.T) {
	kv := NewKV()
	kv.Set("u8", uint8(1))
	kv.Set("i8", int8(-1))
	kv.Set("u16", uint16(2))
	kv.Set("i16", int16(-2))
	kv.Set("u32", uint32(3))
	kv.Set("i32", int32(-3))
	kv.Set("u64", uint64(4))
	kv.Set("i64", int64(-4))
	kv.Set("f32", float32(1.5))
	kv.Set("f64", float64(2.5))
	kv.Set("flag", true)
	kv.Set("text", "hallo")
	kv.Set("strs", []string{"a", "bb"})
	kv.Set("ints", []int32{1, 2, 3})
	kv.Set("bools", []bool{true, false})

	path, _ := writeTestFile(t, kv, nil)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := Decode(f, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.KV.Len() != kv.Len() {
		t.Fatalf("KV-Anzahl = %d, erwartet %d", got.KV.Len(), kv.Len())
	}

	// Einfuegereihenfolge bleibt erhalten
	var wantKeys, gotKeys []string
	for k := range kv.Keys() {
		wantKeys = append(wantKeys, k)
	}
	for k := range got.KV.Keys() {
		gotKeys = append(gotKeys, k)
	}
	if diff := cmp.Diff(wantKeys, gotKeys); diff != "" {
		t.Errorf("Schluessel-Reihenfolge (-want +got):\n%s", diff)
	}

	for k := range kv.Keys() {
		want, _ := kv.Get(k)
		gotV, ok := got.KV.Get(k)
		if !ok {
			t.Errorf("Schluessel %q fehlt", k)
			continue
		}
		if diff := cmp.Diff(want, gotV); diff != "" {
			t.Errorf("%q (-want +got):\n%s", k, diff)
		}
	}
}

// TestDecodeRejectsBadInput prueft Magic-, Versions- und Bounds-Checks
func TestDecodeRejectsBadInput(t *testing.T) {
	// falsches Magic
	r := bytes.NewReader([]byte("NOPE\x03\x00\x00\x00"))
	if _, err := Decode(r, false); err == nil {
		t.Error("fremdes Magic muss abgelehnt werden")
	}

	// Version 1
	buf := []byte("GGUF\x01\x00\x00\x00" +
		"\x00\x00\x00\x00\x00\x00\x00\x00" +
		"\x00\x00\x00\x00\x00\x00\x00\x00")
	if _, err := Decode(bytes.NewReader(buf), false); err == nil {
		t.Error("Version < 2 muss abgelehnt werden")
	}

	// absurde Zaehler (Ueberlauf-Guard vor jeder Allokation)
	buf = []byte("GGUF\x03\x00\x00\x00" +
		"\xff\xff\xff\xff\xff\xff\xff\xff" +
		"\x00\x00\x00\x00\x00\x00\x00\x00")
	if _, err := Decode(bytes.NewReader(buf), false); err == nil {
		t.Error("implausible Zaehler muessen abgelehnt werden")
	}
}

// TestTensorLookupSuggestion: Miss liefert den naechsten Namen
func TestTensorLookupSuggestion(t *testing.T) {
	f := &File{Tensors: []*TensorInfo{
		{Name: "blk.0.attn_q.weight"},
		{Name: "blk.0.attn_k.weight"},
	}}

	if _, err := f.TensorInfo("blk.0.attn_q.weight"); err != nil {
		t.Fatalf("exakter Treffer: %v", err)
	}

	_, err := f.TensorInfo("blk.0.attn_qq.weight")
	if err == nil {
		t.Fatal("Miss muss einen Fehler liefern")
	}
	if want := "blk.0.attn_q.weight"; !bytes.Contains([]byte(err.Error()), []byte(want)) {
		t.Errorf("Fehlermeldung ohne Vorschlag %q: %v", want, err)
	}
}
