package jsonstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type rec struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func collect(t *testing.T, body string, size int) ([][]rec, int, error) {
	t.Helper()
	var batches [][]rec
	n, err := Batches(context.Background(), strings.NewReader(body), Options{BatchSize: size, Logger: nop()}, func(b []rec) error {
		batches = append(batches, b)
		return nil
	})
	return batches, n, err
}

func TestBatches_sizes(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 1; i <= 250; i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id":%d,"name":"n%d"}`, i, i)
	}
	sb.WriteString("]")

	batches, n, err := collect(t, sb.String(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 250 {
		t.Errorf("total = %d want 250", n)
	}
	if len(batches) != 3 || len(batches[0]) != 100 || len(batches[1]) != 100 || len(batches[2]) != 50 {
		t.Fatalf("batch sizes: %d batches", len(batches))
	}
	if batches[0][0].ID != 1 || batches[2][49].ID != 250 {
		t.Errorf("order: first=%d last=%d", batches[0][0].ID, batches[2][49].ID)
	}
}

func TestBatches_skipsBadElements(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 1; i <= 100; i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		if i == 50 {
			sb.WriteString(`{"id":"not-a-number","name":{"nested":[1,2]}}`)
			continue
		}
		fmt.Fprintf(&sb, `{"id":%d,"name":"n"}`, i)
	}
	sb.WriteString(`,null,42,"str",[1,2]]`)

	_, n, err := collect(t, sb.String(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 99 {
		t.Errorf("decoded %d want 99", n)
	}
}

func TestBatches_emptyArray(t *testing.T) {
	calls := 0
	n, err := Batches(context.Background(), strings.NewReader(" [ ] "), Options{Logger: nop()}, func([]rec) error {
		calls++
		return nil
	})
	if err != nil || n != 0 || calls != 0 {
		t.Errorf("n=%d calls=%d err=%v", n, calls, err)
	}
}

func TestBatches_streamLevelFailures(t *testing.T) {
	cases := map[string]string{
		"object":         `{bad`,
		"empty":          ``,
		"scalar":         `"hello"`,
		"truncated":      `[{"id":1},{"id":2,"name":"x`,
		"truncatedArray": `[{"id":1}`,
		"syntax":         `[{"id":1},{id:2}]`,
		"missingComma":   `[{"id":1} {"id":2}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := collect(t, body, 10)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestBatches_deliveredBeforeFailure(t *testing.T) {
	body := `[{"id":1},{"id":2},{"id":3},{"id":`
	batches, n, err := collect(t, body, 2)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v", err)
	}
	if n != 2 || len(batches) != 1 {
		t.Errorf("n=%d batches=%d, want one full batch before failure", n, len(batches))
	}
}

func TestBatches_callbackErrorStops(t *testing.T) {
	boom := errors.New("write failed")
	calls := 0
	_, err := Batches(context.Background(), strings.NewReader(`[{"id":1},{"id":2},{"id":3}]`), Options{BatchSize: 1, Logger: nop()}, func([]rec) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d want 1", calls)
	}
}

func TestBatches_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Batches(ctx, strings.NewReader(`[{"id":1}]`), Options{Logger: nop()}, func([]rec) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
