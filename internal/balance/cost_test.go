package balance

import (
	"testing"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

func TestOperationCost(t *testing.T) {
	tests := []struct {
		name        string
		op          domain.OperationType
		multipliers []string
		want        int
	}{
		{"image base", domain.OperationTextToImage, nil, 5},
		{"image-to-image base", domain.OperationImageToImage, nil, 6},
		{"video base", domain.OperationTextToVideo, nil, 20},
		{"high quality image", domain.OperationTextToImage, []string{"high-quality"}, 8},
		{"ultra quality image", domain.OperationTextToImage, []string{"ultra-quality"}, 10},
		{"long high quality video", domain.OperationTextToVideo, []string{"high-quality", "duration-10s"}, 45},
		{"unknown multiplier ignored", domain.OperationTextToImage, []string{"free-please"}, 5},
		{"unknown operation falls back", domain.OperationType("text-to-audio"), nil, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OperationCost(tt.op, tt.multipliers); got != tt.want {
				t.Fatalf("OperationCost(%q, %v) = %d, want %d", tt.op, tt.multipliers, got, tt.want)
			}
		})
	}
}

func TestMultipliers(t *testing.T) {
	tests := []struct {
		name     string
		quality  string
		duration int
		want     []string
	}{
		{"image defaults", "", 0, nil},
		{"quality only", "high-quality", 0, []string{"high-quality"}},
		{"short video", "", 5, []string{"duration-5s"}},
		{"duration snaps up", "", 7, []string{"duration-10s"}},
		{"long ultra video", "ultra-quality", 30, []string{"ultra-quality", "duration-30s"}},
		{"unknown quality dropped", "standard", 10, []string{"duration-10s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Multipliers(tt.quality, tt.duration)
			if len(got) != len(tt.want) {
				t.Fatalf("Multipliers(%q, %d) = %v, want %v", tt.quality, tt.duration, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Multipliers(%q, %d) = %v, want %v", tt.quality, tt.duration, got, tt.want)
				}
			}
		})
	}
}

func TestDurationScalesVideoCost(t *testing.T) {
	short := OperationCost(domain.OperationTextToVideo, Multipliers("", 5))
	long := OperationCost(domain.OperationTextToVideo, Multipliers("ultra-quality", 30))
	if short != 20 {
		t.Fatalf("5s video cost = %d, want 20", short)
	}
	if long != 120 {
		t.Fatalf("30s ultra video cost = %d, want 120", long)
	}
}

func TestCheckOperationBalanceShortfall(t *testing.T) {
	// Balance 8 against a cost-10 operation.
	res := CheckOperationBalance(8, domain.OperationTextToImage, []string{"ultra-quality"})
	if res.HasEnough {
		t.Fatal("8 credits should not afford a cost-10 operation")
	}
	if res.Required != 10 || res.Current != 8 || res.Shortfall != 2 {
		t.Fatalf("result = %+v, want required 10, current 8, shortfall 2", res)
	}

	// Pure: same inputs, same output.
	if again := CheckOperationBalance(8, domain.OperationTextToImage, []string{"ultra-quality"}); again != res {
		t.Fatalf("second call = %+v, want %+v", again, res)
	}
}

func TestCheckOperationBalanceAffordable(t *testing.T) {
	res := CheckOperationBalance(20, domain.OperationTextToImage, nil)
	if !res.HasEnough || res.Shortfall != 0 {
		t.Fatalf("result = %+v, want affordable", res)
	}
}

func TestCategoryOf(t *testing.T) {
	if got := CategoryOf(domain.OperationImageToVideo); got != domain.OperationCategoryVideo {
		t.Fatalf("CategoryOf(image-to-video) = %q", got)
	}
	if got := CategoryOf(domain.OperationImageToImage); got != domain.OperationCategoryImage {
		t.Fatalf("CategoryOf(image-to-image) = %q", got)
	}
}
