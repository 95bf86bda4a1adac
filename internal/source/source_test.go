package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"TenderRadar/internal/domain"
)

type noopSource struct{ name string }

func (n *noopSource) FetchTodaysNotices(ctx context.Context, countryCode string, limit int) ([]domain.NoticeSummary, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ted := &noopSource{name: "ted"}
	r.Register("ted", ted)

	src, err := r.Resolve("ted")
	require.NoError(t, err)
	require.Same(t, ted, src)

	_, err = r.Resolve("bodacc")
	require.Error(t, err)
}

func TestRegistryReplace(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("ted", &noopSource{name: "v1"})
	v2 := &noopSource{name: "v2"}
	r.Register("ted", v2)

	src, err := r.Resolve("ted")
	require.NoError(t, err)
	require.Same(t, v2, src)
}
