package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeStream struct {
	deltas []string
	pos    int
	err    error
	closed int
}

func (f *fakeStream) Next() bool {
	if f.pos >= len(f.deltas) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeStream) Delta() string { return f.deltas[f.pos-1] }
func (f *fakeStream) Err() error    { return f.err }
func (f *fakeStream) Close() error  { f.closed++; return nil }

func collect(t *testing.T, src *Source) ([]string, error) {
	t.Helper()
	var out []string
	for i := 0; i < 100; i++ {
		inc, err := src.Next(context.Background())
		if err != nil {
			if inc != "" {
				out = append(out, inc)
			}
			return out, err
		}
		out = append(out, inc)
	}
	t.Fatal("source never ended")
	return nil, nil
}

func TestSource_Coalesces(t *testing.T) {
	fs := &fakeStream{deltas: []string{"ab", "cd", "", "ef", "g"}}
	got, err := collect(t, newSource(fs, 4))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
	want := []string{"abcd", "efg"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("increments = %q, want %q", got, want)
	}
	if fs.closed != 1 {
		t.Errorf("stream closed %d times, want 1", fs.closed)
	}
}

// TestSource_CountsRunes 合并阈值按字符而不是字节计算
func TestSource_CountsRunes(t *testing.T) {
	fs := &fakeStream{deltas: []string{"при", "вет", "!"}}
	got, _ := collect(t, newSource(fs, 6))
	if len(got) != 2 || got[0] != "привет" || got[1] != "!" {
		t.Errorf("increments = %q", got)
	}
}

func TestSource_StreamError(t *testing.T) {
	boom := errors.New("503 from upstream")
	fs := &fakeStream{deltas: []string{"partial"}, err: boom}
	src := newSource(fs, 100)

	inc, err := src.Next(context.Background())
	if !errors.Is(err, boom) || inc != "" {
		t.Fatalf("Next() = %q, %v", inc, err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after failure = %v, want io.EOF", err)
	}
}

func TestSource_CanceledContext(t *testing.T) {
	fs := &fakeStream{deltas: []string{"a", "b"}}
	src := newSource(fs, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Next() error = %v, want context.Canceled", err)
	}
	if fs.closed != 1 {
		t.Error("stream should be closed on cancellation")
	}
	if err := src.Close(); err != nil || fs.closed != 1 {
		t.Errorf("Close() after finish: err=%v closed=%d", err, fs.closed)
	}
}

func TestToParams(t *testing.T) {
	params := toParams([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})
	if len(params) != 3 {
		t.Fatalf("len = %d", len(params))
	}
	if params[0].OfSystem == nil || params[1].OfUser == nil || params[2].OfAssistant == nil {
		t.Errorf("roles not mapped: %+v", params)
	}
}

func TestNewClient_DefaultIncrement(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	if c.minIncrement != DefaultMinIncrement {
		t.Errorf("minIncrement = %d", c.minIncrement)
	}
}
