package goal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Branch is a development branch of the randomizer.
type Branch string

const (
	BranchDev      Branch = "dev"
	BranchDevFenhl Branch = "devFenhl"
	BranchDevBlitz Branch = "devBlitz"
	BranchDevR     Branch = "devR"
)

// Version is one released build of a randomizer branch. Supplementary is
// the extra version component used by forks of the main branch.
type Version struct {
	Branch        Branch
	Major         int
	Minor         int
	Patch         int
	Supplementary *int
}

func (v Version) String() string {
	if v.Supplementary != nil {
		return fmt.Sprintf("%d.%d.%d-%d", v.Major, v.Minor, v.Patch, *v.Supplementary)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses "major.minor.patch" with an optional "-supplementary"
// suffix, as reported by the web generator's version endpoint.
func ParseVersion(branch Branch, s string) (Version, error) {
	s = strings.TrimSpace(s)
	base, supp, hasSupp := strings.Cut(s, "-")
	parts := strings.Split(base, ".")
	if len(parts) != 3 {
		return Version{}, errors.Errorf("malformed randomizer version %q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, errors.Wrapf(err, "malformed randomizer version %q", s)
		}
		nums[i] = n
	}
	v := Version{Branch: branch, Major: nums[0], Minor: nums[1], Patch: nums[2]}
	if hasSupp {
		n, err := strconv.Atoi(supp)
		if err != nil {
			return Version{}, errors.Wrapf(err, "malformed randomizer version %q", s)
		}
		v.Supplementary = &n
	}
	return v, nil
}

func dev(major, minor, patch int) *Version {
	return &Version{Branch: BranchDev, Major: major, Minor: minor, Patch: patch}
}

// RandoVersion is either a pinned version or the latest build of a branch.
type RandoVersion struct {
	Branch Branch
	Pinned *Version
}

// RandoVersion returns which randomizer build the goal's seeds use. The
// second return is false for goals whose version comes from elsewhere,
// like the random settings script.
func (g Goal) RandoVersion() (RandoVersion, bool) {
	switch g {
	case ChallengeCup7:
		return RandoVersion{Branch: BranchDev, Pinned: dev(8, 1, 0)}, true
	case CopaDoBrasil:
		return RandoVersion{Branch: BranchDev, Pinned: dev(7, 1, 143)}, true
	case MixedPoolsS3:
		return RandoVersion{Branch: BranchDevFenhl}, true
	case MultiworldS3:
		return RandoVersion{Branch: BranchDev, Pinned: dev(6, 2, 205)}, true
	case StandardWeekly, WeTryToBeBetter:
		return RandoVersion{Branch: BranchDev}, true
	case TriforceBlitz:
		return RandoVersion{Branch: BranchDevBlitz}, true
	}
	return RandoVersion{}, false
}
