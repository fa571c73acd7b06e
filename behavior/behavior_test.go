package behavior

import (
	"testing"

	"github.com/instaflow/instagram-outreach/logger"
)

func newTestLibrary() *Library {
	log, _ := logger.New(logger.Config{Level: "error", Format: "text"})
	return NewLibrary(log)
}

func TestGetPattern(t *testing.T) {
	lib := newTestLibrary()

	for _, name := range []string{"casual_browser", "power_user", "content_creator", "business_account"} {
		p := lib.GetPattern(name)
		if p.Name != name {
			t.Errorf("GetPattern(%q).Name = %q", name, p.Name)
		}
		if p.MinTimePerProfile <= 0 || p.MaxTimePerProfile < p.MinTimePerProfile {
			t.Errorf("pattern %q has invalid time range [%f, %f]", name, p.MinTimePerProfile, p.MaxTimePerProfile)
		}
		if p.MaxPostsPerProfile < 1 {
			t.Errorf("pattern %q has MaxPostsPerProfile = %d", name, p.MaxPostsPerProfile)
		}
	}
}

func TestGetPatternUnknownFallsBack(t *testing.T) {
	lib := newTestLibrary()

	p := lib.GetPattern("no_such_persona")
	if p.Name != DefaultPatternName {
		t.Errorf("unknown pattern returned %q, expected %q", p.Name, DefaultPatternName)
	}
}

func TestAdjustForLargeAccount(t *testing.T) {
	lib := newTestLibrary()
	base := lib.GetPattern("casual_browser")

	adjusted := lib.AdjustForAccountSize(base, 200000)

	want := base.FollowProbability * 1.5
	if want > 0.95 {
		want = 0.95
	}
	if adjusted.FollowProbability != want {
		t.Errorf("follow probability = %f, expected %f", adjusted.FollowProbability, want)
	}

	// >50k followers also deepens the browse
	if adjusted.MaxPostsPerProfile != base.MaxPostsPerProfile+2 {
		t.Errorf("max posts = %d, expected %d", adjusted.MaxPostsPerProfile, base.MaxPostsPerProfile+2)
	}
	if adjusted.MinTimePerProfile != base.MinTimePerProfile*1.3 {
		t.Errorf("min time = %f, expected %f", adjusted.MinTimePerProfile, base.MinTimePerProfile*1.3)
	}
}

func TestAdjustForLargeAccountCapped(t *testing.T) {
	lib := newTestLibrary()
	base := lib.GetPattern("power_user")
	base.FollowProbability = 0.9

	adjusted := lib.AdjustForAccountSize(base, 500000)
	if adjusted.FollowProbability != 0.95 {
		t.Errorf("follow probability = %f, expected cap at 0.95", adjusted.FollowProbability)
	}
}

func TestAdjustForMediumAccount(t *testing.T) {
	lib := newTestLibrary()
	base := lib.GetPattern("casual_browser")

	adjusted := lib.AdjustForAccountSize(base, 20000)
	if adjusted.FollowProbability != base.FollowProbability*1.25 {
		t.Errorf("follow probability = %f, expected %f", adjusted.FollowProbability, base.FollowProbability*1.25)
	}
	// Below the 50k threshold the browse depth is unchanged
	if adjusted.MaxPostsPerProfile != base.MaxPostsPerProfile {
		t.Errorf("max posts changed for 20k account")
	}
}

func TestAdjustForSmallAccount(t *testing.T) {
	lib := newTestLibrary()
	base := lib.GetPattern("casual_browser")

	adjusted := lib.AdjustForAccountSize(base, 500)
	if adjusted.FollowProbability != base.FollowProbability*0.75 {
		t.Errorf("follow probability = %f, expected %f", adjusted.FollowProbability, base.FollowProbability*0.75)
	}

	// Floor at 0.01
	base.FollowProbability = 0.005
	floored := lib.AdjustForAccountSize(base, 500)
	if floored.FollowProbability != 0.01 {
		t.Errorf("follow probability = %f, expected floor 0.01", floored.FollowProbability)
	}
}

func TestAdjustDoesNotMutateOriginal(t *testing.T) {
	lib := newTestLibrary()
	base := lib.GetPattern("casual_browser")
	before := base.FollowProbability

	lib.AdjustForAccountSize(base, 200000)
	if base.FollowProbability != before {
		t.Error("AdjustForAccountSize mutated its input")
	}
}

func TestCustomPattern(t *testing.T) {
	lib := newTestLibrary()

	like := 0.77
	follow := 0.33
	for i := 0; i < 100; i++ {
		p := lib.CustomPattern(Overrides{
			LikeProbability:   &like,
			FollowProbability: &follow,
		})

		if p.Name != "custom" {
			t.Fatalf("custom pattern name = %q", p.Name)
		}
		if p.LikeProbability != 0.77 || p.FollowProbability != 0.33 {
			t.Fatalf("overrides not applied: like=%f follow=%f", p.LikeProbability, p.FollowProbability)
		}
		if p.MinTimePerProfile <= 0 || p.MaxTimePerProfile < p.MinTimePerProfile {
			t.Fatalf("jittered time range invalid: [%f, %f]", p.MinTimePerProfile, p.MaxTimePerProfile)
		}
		if p.MaxPostsPerProfile < 1 {
			t.Fatalf("jittered post count = %d", p.MaxPostsPerProfile)
		}
	}
}
