package buildmap

import (
	"encoding/json"
	"testing"

	"github.com/sunholo/buildtrack/testutil"
)

// TestGoldenBuildMapEncoding locks down the wire shape of a BuildMap once
// it is serialized back out to JSON, the form external tooling consuming
// buildtrack.buildmap/v1 documents actually reads.
func TestGoldenBuildMapEncoding(t *testing.T) {
	m, err := New([]Pair{
		{Artifact: "pkg/a.py", Source: "src/pkg/a.py"},
		{Artifact: "pkg/b.py", Source: "src/pkg/b.py"},
		{Artifact: "__manifest__.py", Source: "src/gen/__manifest__.py"},
	}, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	testutil.AssertGoldenJSON(t, "buildmap", "encoded_pairs", encoded)
}
