package bytecode

import "testing"

func TestLineTable_AddCollapsesSameOffset(t *testing.T) {
	lt := &LineTable{}
	lt.Add(0, 1)
	lt.Add(0, 3) // same offset, larger line: updates in place
	lt.Add(0, 2) // same offset, smaller line: no-op

	if len(lt.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d: %+v", len(lt.Entries), lt.Entries)
	}
	if lt.Entries[0].Line != 3 {
		t.Errorf("expected line 3 to win, got %d", lt.Entries[0].Line)
	}
}

func TestLineTable_LookupFindsLargestOffsetNotExceedingQuery(t *testing.T) {
	lt := &LineTable{}
	lt.Add(0, 1)
	lt.Add(4, 2)
	lt.Add(10, 5)

	cases := []struct {
		offset uint32
		want   uint32
	}{
		{0, 1},
		{3, 1},
		{4, 2},
		{9, 2},
		{10, 5},
		{100, 5},
	}
	for _, c := range cases {
		if got := lt.Lookup(c.offset); got != c.want {
			t.Errorf("Lookup(%d) = %d, want %d", c.offset, got, c.want)
		}
	}
}

func TestLineTable_LookupEmptyTable(t *testing.T) {
	lt := &LineTable{}
	if got := lt.Lookup(5); got != 0 {
		t.Errorf("Lookup on an empty table = %d, want 0", got)
	}
}

func TestLineTable_EncodeIsLittleEndianPairs(t *testing.T) {
	lt := &LineTable{}
	lt.Add(1, 256)
	buf := lt.Encode()
	if len(buf) != 8 {
		t.Fatalf("expected 8 bytes for one entry, got %d", len(buf))
	}
	// offset=1 little-endian
	if buf[0] != 1 || buf[1] != 0 || buf[2] != 0 || buf[3] != 0 {
		t.Errorf("offset not encoded little-endian: %v", buf[:4])
	}
	// line=256 little-endian
	if buf[4] != 0 || buf[5] != 1 || buf[6] != 0 || buf[7] != 0 {
		t.Errorf("line not encoded little-endian: %v", buf[4:])
	}
}
