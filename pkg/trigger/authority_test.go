package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/daehyun-ko/crossfill/pkg/relay"
	"github.com/daehyun-ko/crossfill/pkg/util"
)

var (
	maker       = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	beneficiary = common.HexToAddress("0xBEEF000000000000000000000000000000000000")
)

func newTestAuthority(t *testing.T) (*Authority, *relay.Loopback, *[]relay.Message) {
	t.Helper()
	ch := relay.NewLoopback()
	var sent []relay.Message
	ch.SetHandler(func(m relay.Message) { sent = append(sent, m) })

	a := NewAuthority(Config{
		Clock:        &util.FakeClock{T: time.UnixMilli(1_000_000)},
		Channel:      ch,
		TargetDomain: 1,
		GasBudget:    200_000,
		Beneficiary:  beneficiary,
	})
	return a, ch, &sent
}

func TestLowerTriggerFiresOnce(t *testing.T) {
	a, _, sent := newTestAuthority(t)
	ctx := context.Background()

	id := a.Arm(7, maker, 3000, Lower)

	// Above the limit: nothing fires.
	if fired := a.OnPriceUpdate(ctx, 3100); fired != 0 {
		t.Fatalf("fired = %d at 3100, want 0", fired)
	}
	// Equal is not below.
	if fired := a.OnPriceUpdate(ctx, 3000); fired != 0 {
		t.Fatalf("fired = %d at 3000, want 0", fired)
	}

	if fired := a.OnPriceUpdate(ctx, 2990); fired != 1 {
		t.Fatalf("fired = %d at 2990, want 1", fired)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	m := (*sent)[0]
	if m.Payload.OrderID != 7 || m.Payload.Beneficiary != beneficiary {
		t.Errorf("payload = %+v", m.Payload)
	}

	tr, ok := a.Trigger(id)
	if !ok || tr.Active {
		t.Errorf("trigger = %+v, want fired", tr)
	}
	if tr.FiredAt == 0 {
		t.Error("FiredAt not set")
	}

	// A deeper move never re-fires a spent trigger.
	if fired := a.OnPriceUpdate(ctx, 2980); fired != 0 {
		t.Errorf("fired = %d at 2980, want 0", fired)
	}
	if len(*sent) != 1 {
		t.Errorf("sent %d messages after re-cross, want 1", len(*sent))
	}
}

func TestUpperTriggerFires(t *testing.T) {
	a, _, sent := newTestAuthority(t)
	ctx := context.Background()

	a.Arm(3, maker, 5000, Upper)

	if fired := a.OnPriceUpdate(ctx, 4900); fired != 0 {
		t.Fatalf("fired = %d below limit, want 0", fired)
	}
	if fired := a.OnPriceUpdate(ctx, 5001); fired != 1 {
		t.Fatalf("fired = %d above limit, want 1", fired)
	}
	if len(*sent) != 1 || (*sent)[0].Payload.OrderID != 3 {
		t.Errorf("sent = %+v", *sent)
	}
}

func TestOnlySatisfiablePrefixFires(t *testing.T) {
	a, _, sent := newTestAuthority(t)
	ctx := context.Background()

	a.Arm(1, maker, 3000, Lower)
	a.Arm(2, maker, 2900, Lower)
	a.Arm(3, maker, 2500, Lower)
	a.Arm(4, maker, 5000, Upper)

	// 2950 satisfies only the 3000 trigger.
	if fired := a.OnPriceUpdate(ctx, 2950); fired != 1 {
		t.Fatalf("fired = %d at 2950, want 1", fired)
	}
	if (*sent)[0].Payload.OrderID != 1 {
		t.Errorf("fired order %d, want 1", (*sent)[0].Payload.OrderID)
	}

	// 2600 picks up the 2900 trigger; 2500 and the upper stay armed.
	if fired := a.OnPriceUpdate(ctx, 2600); fired != 1 {
		t.Fatalf("fired = %d at 2600, want 1", fired)
	}

	armed := 0
	for _, tr := range a.Triggers() {
		if tr.Active {
			armed++
		}
	}
	if armed != 2 {
		t.Errorf("armed = %d, want 2", armed)
	}
}

func TestDuplicateTriggersPerOrder(t *testing.T) {
	a, _, sent := newTestAuthority(t)
	ctx := context.Background()

	// Two independent triggers on the same order both fire.
	a.Arm(9, maker, 3000, Lower)
	a.Arm(9, maker, 3000, Lower)

	if fired := a.OnPriceUpdate(ctx, 2990); fired != 2 {
		t.Fatalf("fired = %d, want 2", fired)
	}
	if len(*sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(*sent))
	}
}

func TestFiredBeforePublish(t *testing.T) {
	// The channel redelivers every message; the trigger must still emit once.
	ch := relay.NewLoopback()
	ch.Redeliveries = 2
	var sent []relay.Message
	ch.SetHandler(func(m relay.Message) { sent = append(sent, m) })

	a := NewAuthority(Config{
		Clock:       &util.FakeClock{T: time.UnixMilli(1_000_000)},
		Channel:     ch,
		Beneficiary: beneficiary,
	})
	id := a.Arm(1, maker, 3000, Lower)

	a.OnPriceUpdate(context.Background(), 2990)

	// 3 deliveries of ONE publish, not 3 publishes.
	if len(sent) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(sent))
	}
	tr, _ := a.Trigger(id)
	if tr.Active {
		t.Error("trigger still armed after fire")
	}
	if fired := a.OnPriceUpdate(context.Background(), 2990); fired != 0 {
		t.Errorf("re-fired %d times", fired)
	}
}

func TestFireHookObservesEachFiring(t *testing.T) {
	a, _, _ := newTestAuthority(t)
	ctx := context.Background()

	type firing struct{ triggerID, orderID, price uint64 }
	var seen []firing
	a.SetFireHook(func(triggerID, orderID, price uint64) {
		seen = append(seen, firing{triggerID, orderID, price})
	})

	id := a.Arm(7, maker, 3000, Lower)

	if a.OnPriceUpdate(ctx, 3100); len(seen) != 0 {
		t.Fatalf("hook fired %d times without a trigger firing", len(seen))
	}

	a.OnPriceUpdate(ctx, 2990)
	if len(seen) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(seen))
	}
	if seen[0] != (firing{triggerID: id, orderID: 7, price: 2990}) {
		t.Errorf("hook saw %+v", seen[0])
	}

	// A spent trigger never reaches the hook again.
	a.OnPriceUpdate(ctx, 2980)
	if len(seen) != 1 {
		t.Errorf("hook fired %d times after re-cross, want 1", len(seen))
	}
}

func TestMetCondition(t *testing.T) {
	lower := &Trigger{Direction: Lower, LimitPrice: 100}
	upper := &Trigger{Direction: Upper, LimitPrice: 100}

	if lower.Met(100) || !lower.Met(99) || lower.Met(101) {
		t.Error("lower condition wrong")
	}
	if upper.Met(100) || !upper.Met(101) || upper.Met(99) {
		t.Error("upper condition wrong")
	}
}
