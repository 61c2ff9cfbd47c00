package permission

import (
	"context"
	"errors"
	"testing"
)

type fakeProber struct {
	calls int
	errs  []error // returned in order; nil once exhausted
}

func (f *fakeProber) Probe(_ context.Context) error {
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func TestGrantedIsCached(t *testing.T) {
	p := &fakeProber{}
	g := NewProbeGate(p, 2, nil)

	for i := 0; i < 3; i++ {
		st, err := g.Ensure(context.Background())
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if st != Granted {
			t.Errorf("Ensure() = %v, want granted", st)
		}
	}
	if p.calls != 1 {
		t.Errorf("probe calls = %d, want 1", p.calls)
	}
}

func TestDeniedThenPermanentlyDenied(t *testing.T) {
	denied := errors.New("device busy or not allowed")
	p := &fakeProber{errs: []error{denied, denied, denied}}
	g := NewProbeGate(p, 2, nil)

	st, _ := g.Ensure(context.Background())
	if st != Denied {
		t.Errorf("first Ensure() = %v, want denied", st)
	}
	st, _ = g.Ensure(context.Background())
	if st != PermanentlyDenied {
		t.Errorf("second Ensure() = %v, want permanently denied", st)
	}
	st, _ = g.Ensure(context.Background())
	if st != PermanentlyDenied {
		t.Errorf("third Ensure() = %v, want permanently denied", st)
	}
	if p.calls != 2 {
		t.Errorf("probe calls = %d, want 2 (no probing once permanently denied)", p.calls)
	}
}

func TestDeniedThenGranted(t *testing.T) {
	p := &fakeProber{errs: []error{errors.New("no")}}
	g := NewProbeGate(p, 3, nil)

	if st, _ := g.Ensure(context.Background()); st != Denied {
		t.Fatalf("Ensure() = %v, want denied", st)
	}
	if st, _ := g.Ensure(context.Background()); st != Granted {
		t.Fatalf("Ensure() = %v, want granted", st)
	}
}

func TestReset(t *testing.T) {
	p := &fakeProber{errs: []error{errors.New("no")}}
	g := NewProbeGate(p, 1, nil)

	if st, _ := g.Ensure(context.Background()); st != PermanentlyDenied {
		t.Fatalf("Ensure() = %v, want permanently denied", st)
	}
	g.Reset()
	if st, _ := g.Ensure(context.Background()); st != Granted {
		t.Errorf("Ensure() after Reset = %v, want granted", st)
	}
}

func TestCancelledContext(t *testing.T) {
	p := &fakeProber{errs: []error{context.Canceled}}
	g := NewProbeGate(p, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Ensure(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Ensure() error = %v, want context.Canceled", err)
	}
	// A cancelled check must not count as a denial.
	p.errs = nil
	if st, _ := g.Ensure(context.Background()); st != Granted {
		t.Errorf("Ensure() = %v, want granted", st)
	}
}

func TestStatusErr(t *testing.T) {
	if Granted.Err() != nil {
		t.Error("Granted.Err() should be nil")
	}
	if !errors.Is(Denied.Err(), ErrDenied) {
		t.Error("Denied.Err() should be ErrDenied")
	}
	if !errors.Is(PermanentlyDenied.Err(), ErrPermanentlyDenied) {
		t.Error("PermanentlyDenied.Err() should be ErrPermanentlyDenied")
	}
}
