package pull

import (
	"strings"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
	"github.com/matzehuels/treepull/pkg/repo"
)

// parseRefSummary parses the /refs/summary document: one "<digest> <ref>"
// pair per line. Empty lines are skipped; a later line for the same ref
// wins. Any line without a separating space is corrupt.
func parseRefSummary(contents string) ([]repo.Ref, error) {
	var out []repo.Ref
	index := make(map[string]int)

	for _, line := range strings.Split(contents, "\n") {
		if line == "" {
			continue
		}
		hex, ref, ok := strings.Cut(line, " ")
		if !ok {
			return nil, errors.New(errors.ErrCodeCorrupt, "invalid ref summary line; missing ' ' in %q", line)
		}
		if err := errors.ValidateRefName(ref); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "invalid ref summary line %q", line)
		}
		d, err := objects.DigestFromHex(hex)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "invalid ref summary line %q", line)
		}
		if i, seen := index[ref]; seen {
			out[i].Target = d
			continue
		}
		index[ref] = len(out)
		out = append(out, repo.Ref{Name: ref, Target: d})
	}
	return out, nil
}
