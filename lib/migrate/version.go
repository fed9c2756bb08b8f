package migrate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var trailingZeros = regexp.MustCompile(`(\.0+)*$`)

// parseVersion splits a dotted version into its integer components after
// stripping trailing ".0" segments ("3.0.0" -> [3], "2.8.10" -> [2 8 10]).
func parseVersion(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	parts := strings.Split(trailingZeros.ReplaceAllString(v, ""), ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version %q", v)
		}
		nums[i] = n
	}
	return nums, nil
}

// CompareVersions compares two dotted versions component-wise.
// It returns -1 if a < b, 0 if a == b and 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseVersion(b)
	if err != nil {
		return 0, err
	}

	for i := 0; i < len(va) && i < len(vb); i++ {
		switch {
		case va[i] < vb[i]:
			return -1, nil
		case va[i] > vb[i]:
			return 1, nil
		}
	}
	switch {
	case len(va) < len(vb):
		return -1, nil
	case len(va) > len(vb):
		return 1, nil
	}
	return 0, nil
}
