package codec

import (
	"testing"

	"github.com/tenclass/sweet-encoder/internal/picture"
)

func TestTuneString(t *testing.T) {
	if got := tuneString(0); got != "zerolatency" {
		t.Fatalf("tuneString(0) = %q, want %q", got, "zerolatency")
	}
	if got := tuneString(FlagFastDecode); got != "zerolatency+fastdecode" {
		t.Fatalf("tuneString(FlagFastDecode) = %q, want %q", got, "zerolatency+fastdecode")
	}
}

func TestOptionString(t *testing.T) {
	if got := optionString(0); got != "scenecut=0:keyint-min=7200" {
		t.Fatalf("optionString(0) = %q, want %q", got, "scenecut=0:keyint-min=7200")
	}
	if got := optionString(FlagArithmeticEntropy); got != "scenecut=0:keyint-min=7200:cabac=1" {
		t.Fatalf("optionString(FlagArithmeticEntropy) = %q, want %q", got, "scenecut=0:keyint-min=7200:cabac=1")
	}
	all := FlagArithmeticEntropy | FlagExtendedRefs
	if got := optionString(all); got != "scenecut=0:keyint-min=7200:cabac=1:ref=3" {
		t.Fatalf("optionString(all) = %q, want %q", got, "scenecut=0:keyint-min=7200:cabac=1:ref=3")
	}
}

func TestPackI420Order(t *testing.T) {
	img := &picture.YUV420{
		Y: []byte{1, 2}, U: []byte{3}, V: []byte{4},
	}
	got := packI420(img)
	want := []byte{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("packI420 len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("packI420[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
