package version

import "testing"

func TestComparatorOrdersByTopologyFirst(t *testing.T) {
	c := NewComparator(false)

	a := Version{TopologyVersion: 1, GlobalTime: 100, Order: 50}
	b := Version{TopologyVersion: 2, GlobalTime: 1, Order: 1}

	if !c.Greater(b, a) {
		t.Fatalf("expected b (higher topology) to be greater than a")
	}
}

func TestComparatorOrdersByTimeThenOrder(t *testing.T) {
	c := NewComparator(false)

	a := Version{GlobalTime: 10, Order: 5}
	b := Version{GlobalTime: 20, Order: 1}

	if !c.Greater(b, a) {
		t.Fatalf("expected b (later time) to be greater than a")
	}

	a = Version{GlobalTime: 10, Order: 1}
	b = Version{GlobalTime: 10, Order: 2}
	if !c.Greater(b, a) {
		t.Fatalf("expected b (higher order, equal time) to be greater than a")
	}
}

func TestComparatorIgnoreTimeTreatsDifferingTimeAsEqual(t *testing.T) {
	c := NewComparator(true)

	a := Version{TopologyVersion: 1, GlobalTime: 10, Order: 5, NodeOrder: 1}
	b := Version{TopologyVersion: 1, GlobalTime: 99999, Order: 5, NodeOrder: 1}

	if !c.Equal(a, b) {
		t.Fatalf("expected versions differing only in time to be equal in ignore-time mode")
	}

	withTime := NewComparator(false)
	if withTime.Equal(a, b) {
		t.Fatalf("expected versions differing in time to be unequal with time-sensitive comparator")
	}
}

func TestComparatorGreaterEqual(t *testing.T) {
	c := NewComparator(false)
	v := Version{TopologyVersion: 1, GlobalTime: 5, Order: 1}

	if !c.GreaterEqual(v, v) {
		t.Fatalf("expected a version to be greater-or-equal to itself")
	}
}

func TestConflictVersionNeverConsultedByCompare(t *testing.T) {
	c := NewComparator(false)

	a := Version{TopologyVersion: 1, GlobalTime: 5, Order: 1}
	a = a.WithConflict(Version{Order: 999999})
	b := Version{TopologyVersion: 1, GlobalTime: 5, Order: 1}

	if !c.Equal(a, b) {
		t.Fatalf("ordinary ordering must ignore the embedded conflict version")
	}

	cv, ok := a.ConflictVersion()
	if !ok || cv.Order != 999999 {
		t.Fatalf("expected conflict version to be retrievable explicitly")
	}
}
