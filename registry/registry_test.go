package registry

import (
	"testing"

	"github.com/nanolog/nanolog/microcode"
	"github.com/nanolog/nanolog/pack"
)

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := New()
	a, err := r.Register(1, "a.go", 10, "x=%d")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Register(1, "a.go", 11, "y=%s")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 0 || b.ID != 1 {
		t.Fatalf("got ids %d, %d", a.ID, b.ID)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}

func TestRegisterDedupsIdenticalSite(t *testing.T) {
	r := New()
	a, err := r.Register(1, "a.go", 10, "x=%d")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Register(1, "a.go", 10, "x=%d")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected same *StaticLogInfo for identical site, got distinct ids %d %d", a.ID, b.ID)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestRegisterPropagatesParseError(t *testing.T) {
	r := New()
	if _, err := r.Register(1, "a.go", 10, "bad=%q-trailer %y"); err == nil {
		t.Fatal("expected parse error to propagate")
	}
	if r.Len() != 0 {
		t.Fatalf("a failed registration must not be appended, Len() = %d", r.Len())
	}
}

func TestGetOutOfRange(t *testing.T) {
	r := New()
	if r.Get(0) != nil {
		t.Fatal("Get on empty registry should return nil")
	}
}

func TestSinceReturnsSuffix(t *testing.T) {
	r := New()
	r.Register(1, "a.go", 1, "%d")
	r.Register(1, "a.go", 2, "%d")
	r.Register(1, "a.go", 3, "%d")
	since := r.Since(1)
	if len(since) != 2 || since[0].Line != 2 || since[1].Line != 3 {
		t.Fatalf("got %+v", since)
	}
}

func TestAddDecodedInstallsAtID(t *testing.T) {
	r := New()
	meta, _ := microcode.Parse("%d", 1, 1, "a.go")
	info := &StaticLogInfo{ID: 3, Meta: meta, Codec: NewCodec(meta)}
	r.AddDecoded(info)
	if r.Get(3) != info {
		t.Fatal("AddDecoded did not install entry at its ID")
	}
	if r.Get(1) != nil {
		t.Fatal("intervening slots should be nil, not panic")
	}
}

func TestCodecRecordAndPackRoundTrip(t *testing.T) {
	meta, err := microcode.Parse("x=%d s=%s f=%f", 1, 1, "a.go")
	if err != nil {
		t.Fatal(err)
	}
	codec := NewCodec(meta)
	args := []interface{}{int64(-42), "hello", 3.5}

	size, err := codec.RecordSize(args)
	if err != nil {
		t.Fatal(err)
	}
	raw := make([]byte, size)
	n, err := codec.Record(raw, args)
	if err != nil {
		t.Fatal(err)
	}
	if n != size {
		t.Fatalf("Record wrote %d bytes, RecordSize said %d", n, size)
	}

	packed := make([]byte, size+codec.NumNibbles())
	end := codec.Pack(packed, raw)

	u := pack.NewUnpacker(packed, codec.NumNibbles())
	if got := u.NextSigned(); got != -42 {
		t.Fatalf("unpacked %%d argument = %d, want -42", got)
	}
	if got := u.NextFloat64(); got != 3.5 {
		t.Fatalf("unpacked %%f argument = %v, want 3.5", got)
	}
	if got := string(packed[u.EndOfPackedArguments():end]); got != "hello\x00" {
		t.Fatalf("packed string tail = %q, want %q", got, "hello\x00")
	}
}
