package tiledata

import "testing"

func TestAlphaTileIDPacking(t *testing.T) {
	id := NewAlphaTileID(3, 1234)
	if id.Page() != 3 {
		t.Fatalf("Page() = %d, want 3", id.Page())
	}
	if id.IndexInPage() != 1234 {
		t.Fatalf("IndexInPage() = %d, want 1234", id.IndexInPage())
	}
	if !id.IsValid() {
		t.Fatal("expected valid id")
	}
	if InvalidAlphaTileID.IsValid() {
		t.Fatal("invalid id reported as valid")
	}
}

func TestRasterTileAlphaTileRoundTrip(t *testing.T) {
	var rt RasterTile
	want := NewAlphaTileID(2, 500)
	rt.SetAlphaTileID(want)
	if got := rt.AlphaTileID(); got != want {
		t.Fatalf("round trip = %v, want %v", got, want)
	}
}

func TestPageCountForTiles(t *testing.T) {
	cases := []struct {
		tiles uint32
		want  uint32
	}{
		{0, 1},
		{1, 1},
		{TilesPerPage, 1},
		{TilesPerPage + 1, 2},
		{TilesPerPage * 3, 3},
	}
	for _, c := range cases {
		if got := PageCountForTiles(c.tiles); got != c.want {
			t.Errorf("PageCountForTiles(%d) = %d, want %d", c.tiles, got, c.want)
		}
	}
}

func TestFillCoordPacking(t *testing.T) {
	v := PackFillCoord(8.5)
	got := UnpackFillCoord(v)
	if diff := got - 8.5; diff < -0.01 || diff > 0.01 {
		t.Fatalf("round trip = %v, want ~8.5", got)
	}
}

func TestRasterTileInvalidSentinelRoundTrip(t *testing.T) {
	var rt RasterTile
	rt.SetAlphaTileID(InvalidAlphaTileID)
	if got := rt.AlphaTileID(); got.IsValid() {
		t.Fatalf("invalid sentinel survived as valid id %v", got)
	}
}
