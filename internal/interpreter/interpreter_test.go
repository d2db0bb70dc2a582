package interpreter

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/catalog"
	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/atlanticdynamic/catalogd/internal/manifest"
	"github.com/atlanticdynamic/catalogd/internal/metrics"
	"github.com/atlanticdynamic/catalogd/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const siteRoot = "/etc/catalogd/site.toml"

const webOnly = `
[classes.webserver]
[[classes.webserver.resources]]
type = "package"
title = "nginx"

[nodes.web1]
classes = ["webserver"]
`

const webAndDB = `
[classes.webserver]
[classes.database]

[nodes.web1]
classes = ["webserver", "database"]
`

func newSiteInterpreter(t *testing.T, opts ...Option) (*Interpreter, afero.Fs, *testutil.FakeClock) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	testutil.WriteSiteManifest(t, fsys, "/etc/catalogd")
	clock := testutil.NewFakeClock(epoch)
	opts = append([]Option{WithFs(fsys), WithClock(clock.Now)}, opts...)
	interp, err := New(siteRoot, opts...)
	require.NoError(t, err)
	return interp, fsys, clock
}

func newMemInterpreter(t *testing.T, content string, opts ...Option) (*Interpreter, afero.Fs, *testutil.FakeClock) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	testutil.WriteManifest(t, fsys, siteRoot, content)
	clock := testutil.NewFakeClock(epoch)
	opts = append([]Option{WithFs(fsys), WithClock(clock.Now)}, opts...)
	interp, err := New(siteRoot, opts...)
	require.NoError(t, err)
	return interp, fsys, clock
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		interp, err := New(siteRoot)
		require.NoError(t, err)
		assert.Equal(t, DefaultCheckInterval, interp.CheckInterval())
		assert.True(t, interp.UseNodes())
		assert.Empty(t, interp.Classes())
		assert.Equal(t, siteRoot, interp.Location())
		assert.Zero(t, interp.Freshness())
		assert.Nil(t, interp.Manifest())
	})

	t.Run("location required", func(t *testing.T) {
		t.Parallel()
		_, err := New("")
		assert.Error(t, err)
	})

	t.Run("custom collaborators need no location", func(t *testing.T) {
		t.Parallel()
		interp, err := New("", WithSource(&mockSource{}), WithParser(&mockParser{}))
		require.NoError(t, err)
		assert.Equal(t, "/mock/site.toml", interp.Location())
	})

	t.Run("negative interval", func(t *testing.T) {
		t.Parallel()
		_, err := New(siteRoot, WithCheckInterval(-time.Second))
		assert.Error(t, err)
	})

	t.Run("classes are copied", func(t *testing.T) {
		t.Parallel()
		classes := []string{"base"}
		interp, err := New(siteRoot, WithUseNodes(false), WithClasses(classes))
		require.NoError(t, err)
		classes[0] = "changed"
		assert.Equal(t, []string{"base"}, interp.Classes())
		assert.False(t, interp.UseNodes())
	})
}

func TestInterpreter_Freshness(t *testing.T) {
	t.Parallel()
	interp, _, _ := newSiteInterpreter(t)

	assert.Equal(t, int64(0), interp.Freshness())

	_, err := interp.Run("web1", catalog.Facts{"hostname": "web1"})
	require.NoError(t, err)
	assert.Equal(t, epoch.Unix(), interp.Freshness())
	assert.NotNil(t, interp.Manifest())
}

func TestInterpreter_WebserverScenario(t *testing.T) {
	t.Parallel()
	interp, _, _ := newMemInterpreter(t, webOnly)

	cat, err := interp.Run("web1.example.org", catalog.Facts{"hostname": "web1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes)
}

func TestInterpreter_FirstRequestFatality(t *testing.T) {
	t.Parallel()
	src := &mockSource{}
	src.On("Exists").Return(false)
	parser := &mockParser{}

	clock := testutil.NewFakeClock(epoch)

	interp, err := New("", WithSource(src), WithParser(parser), WithEvaluator(&stubEvaluator{}),
		WithClock(clock.Now))
	require.NoError(t, err)

	for range 3 {
		cat, err := interp.Run("web1", nil)
		assert.Nil(t, cat)
		require.ErrorIs(t, err, errz.ErrConfigurationMissing)
		assert.Equal(t, errz.KindConfiguration, errz.KindOf(err))
		clock.Advance(DefaultCheckInterval)
	}

	src.AssertNumberOfCalls(t, "Exists", 3)
	parser.AssertNotCalled(t, "Parse")
	assert.Zero(t, interp.Freshness())
}

func TestInterpreter_FirstCompileFailureRetries(t *testing.T) {
	t.Parallel()
	interp, fsys, clock := newMemInterpreter(t, "[nodes.web1\n")

	_, err := interp.Run("web1", nil)
	require.ErrorIs(t, err, errz.ErrManifestParse)

	// the fixed manifest is not read until the check interval has passed
	testutil.WriteManifest(t, fsys, siteRoot, webOnly)
	_, err = interp.Run("web1", nil)
	require.ErrorIs(t, err, errz.ErrManifestParse)

	clock.Advance(DefaultCheckInterval)
	cat, err := interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes)
	assert.Equal(t, clock.Now().Unix(), interp.Freshness())
}

func TestInterpreter_FirstCompileDebounced(t *testing.T) {
	t.Parallel()

	t.Run("failing parse is attempted once per interval", func(t *testing.T) {
		t.Parallel()
		src := &mockSource{}
		src.On("Exists").Return(true)
		parser := &mockParser{}
		parser.On("Parse").Return(nil, errors.New("unexpected token"))
		clock := testutil.NewFakeClock(epoch)
		interp, err := New("", WithSource(src), WithParser(parser),
			WithEvaluator(&stubEvaluator{}), WithClock(clock.Now))
		require.NoError(t, err)

		for range 100 {
			_, err := interp.Run("web1", nil)
			require.ErrorIs(t, err, errz.ErrManifestParse)
		}
		src.AssertNumberOfCalls(t, "Exists", 1)
		parser.AssertNumberOfCalls(t, "Parse", 1)

		clock.Advance(DefaultCheckInterval)
		_, err = interp.Run("web1", nil)
		require.ErrorIs(t, err, errz.ErrManifestParse)
		src.AssertNumberOfCalls(t, "Exists", 2)
		parser.AssertNumberOfCalls(t, "Parse", 2)
	})

	t.Run("missing source is checked once per interval", func(t *testing.T) {
		t.Parallel()
		src := &mockSource{}
		src.On("Exists").Return(false)
		clock := testutil.NewFakeClock(epoch)
		interp, err := New("", WithSource(src), WithParser(&mockParser{}),
			WithEvaluator(&stubEvaluator{}), WithClock(clock.Now))
		require.NoError(t, err)

		for range 10 {
			_, err := interp.Run("web1", nil)
			require.ErrorIs(t, err, errz.ErrConfigurationMissing)
			clock.Advance(time.Second)
		}
		src.AssertNumberOfCalls(t, "Exists", 1)
	})

	t.Run("force check bypasses the interval", func(t *testing.T) {
		t.Parallel()
		interp, fsys, _ := newMemInterpreter(t, "[nodes.web1\n")
		_, err := interp.Run("web1", nil)
		require.ErrorIs(t, err, errz.ErrManifestParse)

		testutil.WriteManifest(t, fsys, siteRoot, webOnly)
		interp.ForceCheck()
		cat, err := interp.Run("web1", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"webserver"}, cat.Classes)
	})
}

func TestInterpreter_Debounce(t *testing.T) {
	t.Parallel()
	src := &mockSource{}
	src.On("Exists").Return(true)
	src.On("Changed", mock.Anything).Return(false, nil)
	parser := &mockParser{}
	parser.On("Parse").Return(&manifest.Tree{}, nil)
	eval := &stubEvaluator{scope: &stubScope{
		evalNode: func(names []string, _ catalog.Facts) (*catalog.Catalog, error) {
			return catalog.New(names[0]), nil
		},
	}}
	clock := testutil.NewFakeClock(epoch)

	interp, err := New("",
		WithSource(src),
		WithParser(parser),
		WithEvaluator(eval),
		WithClock(clock.Now),
		WithCheckInterval(15*time.Second),
	)
	require.NoError(t, err)

	_, err = interp.Run("web1", nil)
	require.NoError(t, err)
	parser.AssertNumberOfCalls(t, "Parse", 1)

	for range 5 {
		clock.Advance(2 * time.Second)
		_, err = interp.Run("web1", nil)
		require.NoError(t, err)
	}
	src.AssertNotCalled(t, "Changed", mock.Anything)

	clock.Advance(5 * time.Second)
	_, err = interp.Run("web1", nil)
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "Changed", 1)

	// the check just now restarts the interval
	clock.Advance(14 * time.Second)
	_, err = interp.Run("web1", nil)
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "Changed", 1)
	parser.AssertNumberOfCalls(t, "Parse", 1)
	assert.Equal(t, int32(1), eval.prepared.Load())
}

func TestInterpreter_ForceCheck(t *testing.T) {
	t.Parallel()
	src := &mockSource{}
	src.On("Exists").Return(true)
	src.On("Changed", mock.Anything).Return(true, nil)
	parser := &mockParser{}
	parser.On("Parse").Return(&manifest.Tree{}, nil)
	eval := &stubEvaluator{scope: &stubScope{}}
	clock := testutil.NewFakeClock(epoch)

	interp, err := New("", WithSource(src), WithParser(parser), WithEvaluator(eval), WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, interp.Refresh())
	require.NoError(t, interp.Refresh())
	parser.AssertNumberOfCalls(t, "Parse", 1)

	interp.ForceCheck()
	clock.Advance(time.Second)
	require.NoError(t, interp.Refresh())
	src.AssertNumberOfCalls(t, "Changed", 1)
	parser.AssertNumberOfCalls(t, "Parse", 2)
	assert.Equal(t, epoch.Add(time.Second).Unix(), interp.Freshness())

	// only the next check is forced
	require.NoError(t, interp.Refresh())
	src.AssertNumberOfCalls(t, "Changed", 1)
}

func TestInterpreter_CheckIntervalAccessors(t *testing.T) {
	t.Parallel()
	interp, fsys, clock := newMemInterpreter(t, webOnly)

	_, err := interp.Run("web1", nil)
	require.NoError(t, err)

	interp.SetCheckInterval(time.Minute)
	assert.Equal(t, time.Minute, interp.CheckInterval())

	testutil.WriteManifest(t, fsys, siteRoot, webAndDB)
	clock.Advance(30 * time.Second)
	cat, err := interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes)

	clock.Advance(30 * time.Second)
	cat, err = interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver", "database"}, cat.Classes)
}

func TestInterpreter_StalenessBound(t *testing.T) {
	t.Parallel()
	interp, fsys, clock := newMemInterpreter(t, webOnly, WithCheckInterval(15*time.Second))

	cat, err := interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes)

	testutil.WriteManifest(t, fsys, siteRoot, webAndDB)

	clock.Advance(14 * time.Second)
	cat, err = interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes, "old compile served within the interval")
	assert.Equal(t, epoch.Unix(), interp.Freshness())

	clock.Advance(time.Second)
	cat, err = interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver", "database"}, cat.Classes)
	assert.Equal(t, epoch.Add(15*time.Second).Unix(), interp.Freshness())
}

func TestInterpreter_FailSoft(t *testing.T) {
	t.Parallel()
	interp, fsys, clock := newMemInterpreter(t, webOnly)

	_, err := interp.Run("web1", nil)
	require.NoError(t, err)

	testutil.WriteManifest(t, fsys, siteRoot, "[nodes.web1\nbroken")
	clock.Advance(DefaultCheckInterval)

	cat, err := interp.Run("web1", nil)
	require.Error(t, err)
	assert.Nil(t, cat)
	assert.ErrorIs(t, err, errz.ErrManifestParse)
	assert.Equal(t, epoch.Unix(), interp.Freshness(), "failed compile does not change freshness")

	// the failed check counts, so the last good compile is served until the next check
	clock.Advance(time.Second)
	cat, err = interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes)

	testutil.WriteManifest(t, fsys, siteRoot, webAndDB)
	clock.Advance(DefaultCheckInterval)
	cat, err = interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver", "database"}, cat.Classes)
}

func TestInterpreter_FailSoftOnPrepare(t *testing.T) {
	t.Parallel()
	interp, fsys, clock := newMemInterpreter(t, webOnly)

	_, err := interp.Run("web1", nil)
	require.NoError(t, err)

	testutil.WriteManifest(t, fsys, siteRoot, "[nodes.web1]\nclasses = [\"missing\"]\n")
	clock.Advance(DefaultCheckInterval)

	_, err = interp.Run("web1", nil)
	require.ErrorIs(t, err, errz.ErrUndefinedClass)
	assert.Equal(t, epoch.Unix(), interp.Freshness())
}

func TestInterpreter_SourceRemovedAfterCompile(t *testing.T) {
	t.Parallel()
	interp, fsys, clock := newMemInterpreter(t, webOnly)

	_, err := interp.Run("web1", nil)
	require.NoError(t, err)

	require.NoError(t, fsys.Remove(siteRoot))
	clock.Advance(DefaultCheckInterval)

	cat, err := interp.Run("web1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"webserver"}, cat.Classes)
}

func TestInterpreter_ChangeCheckError(t *testing.T) {
	t.Parallel()
	src := &mockSource{}
	src.On("Exists").Return(true)
	src.On("Changed", mock.Anything).Return(false, errors.New("permission denied"))
	parser := &mockParser{}
	parser.On("Parse").Return(&manifest.Tree{}, nil)
	clock := testutil.NewFakeClock(epoch)
	eval := &stubEvaluator{scope: &stubScope{}}

	interp, err := New("", WithSource(src), WithParser(parser), WithEvaluator(eval), WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, interp.Refresh())

	clock.Advance(DefaultCheckInterval)
	require.NoError(t, interp.Refresh(), "a failed change check keeps the last compile")
	parser.AssertNumberOfCalls(t, "Parse", 1)
}

func TestCandidateNames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		client   string
		expected []string
	}{
		{client: "host.example.com", expected: []string{"host.example.com", "host"}},
		{client: "host", expected: []string{"host"}},
		{client: "web1.example.org", expected: []string{"web1.example.org", "web1"}},
		{client: ".hidden", expected: []string{".hidden"}},
	}
	for _, tt := range tests {
		t.Run(tt.client, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, CandidateNames(tt.client))
		})
	}
}

func TestInterpreter_IdentityFallback(t *testing.T) {
	t.Parallel()
	var seen [][]string
	eval := &stubEvaluator{scope: &stubScope{
		evalNode: func(names []string, _ catalog.Facts) (*catalog.Catalog, error) {
			seen = append(seen, names)
			return catalog.New(names[0]), nil
		},
	}}
	interp, _, _ := newMemInterpreter(t, webOnly, WithEvaluator(eval))

	_, err := interp.Run("host.example.com", nil)
	require.NoError(t, err)
	_, err = interp.Run("host", nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"host.example.com", "host"}, {"host"}}, seen)
}

func TestInterpreter_NodeAwareRequiresClient(t *testing.T) {
	t.Parallel()
	interp, _, _ := newMemInterpreter(t, webOnly)

	_, err := interp.Run("", catalog.Facts{"hostname": "web1"})
	require.ErrorIs(t, err, errz.ErrInvalidRequest)
	assert.True(t, errz.IsConfigurationError(err))
}

func TestInterpreter_NodeAgnostic(t *testing.T) {
	t.Parallel()
	interp, _, _ := newSiteInterpreter(t,
		WithUseNodes(false),
		WithClasses([]string{"webserver", "ntp"}),
	)

	cat, err := interp.Run("build7.example.org", catalog.Facts{"hostname": "build7"})
	require.NoError(t, err)
	assert.Equal(t, "build7.example.org", cat.Name)
	assert.Equal(t, []string{"base", "ntp", "webserver"}, cat.Classes)

	cat, err = interp.Run("", catalog.Facts{"hostname": "build7"})
	require.NoError(t, err)
	assert.Equal(t, "build7", cat.Name, "client is optional in node-agnostic mode")
}

func TestInterpreter_NodeAgnosticMergesStaticClasses(t *testing.T) {
	t.Parallel()
	eval := &stubEvaluator{scope: &stubScope{
		evaluate: func(_ catalog.Facts, classes []string) (*catalog.Catalog, error) {
			cat := catalog.New("x")
			cat.Classes = []string{"base", "webserver"}
			return cat, nil
		},
	}}
	interp, _, _ := newMemInterpreter(t, webOnly,
		WithEvaluator(eval),
		WithUseNodes(false),
		WithClasses([]string{"webserver", "monitoring"}),
	)

	cat, err := interp.Run("", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "webserver", "monitoring"}, cat.Classes)
}

type customError struct{ msg string }

func (e *customError) Error() string { return e.msg }

func TestInterpreter_ErrorOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		evalNode func(names []string, facts catalog.Facts) (*catalog.Catalog, error)
		wantKind errz.Kind
		contains string
	}{
		{
			name: "configuration error passes through",
			evalNode: func([]string, catalog.Facts) (*catalog.Catalog, error) {
				return nil, fmt.Errorf("%w: %w", errz.ErrEvaluation, errz.ErrNodeNotFound)
			},
			wantKind: errz.KindConfiguration,
			contains: "could not find node",
		},
		{
			name: "unexpected error becomes a defect",
			evalNode: func([]string, catalog.Facts) (*catalog.Catalog, error) {
				return nil, &customError{msg: "disk on fire"}
			},
			wantKind: errz.KindInternalDefect,
			contains: "*interpreter.customError: disk on fire",
		},
		{
			name: "panic becomes a defect",
			evalNode: func([]string, catalog.Facts) (*catalog.Catalog, error) {
				var m map[string]int
				m["boom"]++
				return nil, nil
			},
			wantKind: errz.KindInternalDefect,
			contains: "assignment to entry in nil map",
		},
		{
			name: "panic with a plain value",
			evalNode: func([]string, catalog.Facts) (*catalog.Catalog, error) {
				panic("unexpected state")
			},
			wantKind: errz.KindInternalDefect,
			contains: "unexpected state",
		},
		{
			name: "nil catalog becomes a defect",
			evalNode: func([]string, catalog.Facts) (*catalog.Catalog, error) {
				return nil, nil
			},
			wantKind: errz.KindInternalDefect,
			contains: "no catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eval := &stubEvaluator{scope: &stubScope{evalNode: tt.evalNode}}
			interp, _, _ := newMemInterpreter(t, webOnly, WithEvaluator(eval))

			cat, err := interp.Run("web1", nil)
			require.Error(t, err)
			assert.Nil(t, cat)
			assert.Equal(t, tt.wantKind, errz.KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)

			// the lock is released after a panic
			assert.Equal(t, epoch.Unix(), interp.Freshness())
		})
	}
}

func TestInterpreter_PrepareDefect(t *testing.T) {
	t.Parallel()
	eval := &stubEvaluator{err: &customError{msg: "bad scope"}}
	interp, _, _ := newMemInterpreter(t, webOnly, WithEvaluator(eval))

	_, err := interp.Run("web1", nil)
	require.ErrorIs(t, err, errz.ErrEvaluation)
	assert.Equal(t, errz.KindConfiguration, errz.KindOf(err))
}

func TestInterpreter_Concurrency(t *testing.T) {
	t.Parallel()
	var inside, maxInside atomic.Int32
	eval := &stubEvaluator{scope: &stubScope{
		evalNode: func(names []string, _ catalog.Facts) (*catalog.Catalog, error) {
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			return catalog.New(names[0]), nil
		},
	}}
	interp, fsys, clock := newMemInterpreter(t, webOnly, WithEvaluator(eval))
	require.NoError(t, interp.Refresh())
	testutil.WriteManifest(t, fsys, siteRoot, webAndDB)

	var wg sync.WaitGroup
	for n := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n%5 == 0 {
				clock.Advance(DefaultCheckInterval)
			}
			cat, err := interp.Run(fmt.Sprintf("web%d", n), nil)
			assert.NoError(t, err)
			assert.NotNil(t, cat)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load(), "evaluations never overlap")
	assert.Greater(t, interp.Freshness(), epoch.Unix(), "recompiled while serving")
	assert.Equal(t, int32(2), eval.prepared.Load())
}

func TestInterpreter_Metrics(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	interp, _, clock := newMemInterpreter(t, webOnly, WithMetrics(m))

	_, err := interp.Run("web1", nil)
	require.NoError(t, err)
	_, err = interp.Run("web1", nil)
	require.NoError(t, err)
	clock.Advance(DefaultCheckInterval)
	_, err = interp.Run("web1", nil)
	require.NoError(t, err)

	assert.InDelta(t, 1, promtestutil.ToFloat64(m.Compiles.WithLabelValues(metrics.CompileSuccess)), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(m.FreshnessChecks.WithLabelValues(metrics.CheckDebounced)), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(m.FreshnessChecks.WithLabelValues(metrics.CheckUnchanged)), 0)
}
