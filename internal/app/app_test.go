package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/digest/internal/cache"
	"github.com/bobmcallan/digest/internal/common"
	"github.com/bobmcallan/digest/internal/delivery"
	testcommon "github.com/bobmcallan/digest/test/common"
)

const testPortfolio = `Holdings report,,
Symbol,Cost Price,Quantity
XNAS:AAPL,150,10
TASE:TEVA,40,100
`

func testConfig(t *testing.T, table string) *common.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "portfolio.csv")
	require.NoError(t, os.WriteFile(path, []byte(table), 0644))

	cfg := common.NewDefaultConfig()
	cfg.Portfolio.File = path
	cfg.Output.Dir = filepath.Join(dir, "reports")
	cfg.Provider.Benchmarks = []string{"^GSPC"}
	cfg.Scanner.Universes = []string{"list:NVDA,TSLA"}
	return cfg
}

func testProvider() *testcommon.MockProvider {
	p := testcommon.NewMockProvider()
	p.SetCloses("AAPL", 160, 165)
	p.SetCloses("TEVA.TA", 5000, 5100)
	p.SetCloses("^GSPC", 5000, 5050)
	p.SetCloses("NVDA", 800, 880)
	return p
}

func newTestApp(t *testing.T, cfg *common.Config) *App {
	t.Helper()
	a := newApp(cfg, common.NewSilentLogger(), testProvider(), nil, testcommon.NewMockSummarizer(), cache.NewMemory())
	t.Cleanup(a.Close)
	return a
}

func TestRunOnce_DeliversToFile(t *testing.T) {
	cfg := testConfig(t, testPortfolio)
	a := newTestApp(t, cfg)

	_, ok := a.Latest()
	assert.False(t, ok)

	result, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	require.Len(t, result.Delivered, 1)

	assert.FileExists(t, result.Delivered[0])
	assert.Equal(t, cfg.Output.Dir, filepath.Dir(result.Delivered[0]))
	assert.Len(t, result.Report.Positions, 2)
	assert.NotNil(t, result.Report.Narrative)

	latest, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, result.Report.ID, latest.Report.ID)
}

func TestRunOnce_EmptyReportNotDelivered(t *testing.T) {
	cfg := testConfig(t, "Symbol,Cost Price,Quantity\nZZZZ,10,1\n")
	cfg.Scanner.Enabled = false
	a := newTestApp(t, cfg)
	deliverer := &testcommon.MockDeliverer{}
	a.Deliverer = deliverer

	result, err := a.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Report.IsEmpty())
	assert.Nil(t, result.Message)
	assert.Empty(t, deliverer.Delivered)
	assert.Len(t, result.Report.Unavailable, 1)
}

func TestRunOnce_DeliveryFailure(t *testing.T) {
	a := newTestApp(t, testConfig(t, testPortfolio))
	a.Deliverer = &testcommon.MockDeliverer{Err: errors.New("smtp down")}

	_, err := a.RunOnce(context.Background())
	assert.Error(t, err)

	_, ok := a.Latest()
	assert.False(t, ok, "failed runs are not kept")
}

func TestRunOnce_ArchivesDeliveredReport(t *testing.T) {
	cfg := testConfig(t, testPortfolio)
	a := newTestApp(t, cfg)
	archive := testcommon.NewMockArchive()
	a.Archive = archive
	a.Deliverer = delivery.NewServiceFromConfig(cfg, a.Metrics, a.Logger, delivery.NewArchiveChannel(archive))

	result, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Delivered, 2)
	assert.Equal(t, "archive:"+result.Report.ID, result.Delivered[0])

	rec, err := archive.Get(context.Background(), result.Report.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Message.Subject, rec.Subject)
	assert.Equal(t, result.Message.HTML, rec.HTML)

	a.Close()
	assert.True(t, archive.Closed)
}

func TestRunOnce_ArchiveFailureKeepsRun(t *testing.T) {
	cfg := testConfig(t, testPortfolio)
	a := newTestApp(t, cfg)
	archive := testcommon.NewMockArchive()
	archive.SaveErr = errors.New("connection refused")
	a.Deliverer = delivery.NewServiceFromConfig(cfg, a.Metrics, a.Logger, delivery.NewArchiveChannel(archive))

	result, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Delivered, 1, "file delivery still succeeds")
	assert.FileExists(t, result.Delivered[0])
}

func TestRunOnce_MissingPortfolio(t *testing.T) {
	cfg := testConfig(t, testPortfolio)
	cfg.Portfolio.File = filepath.Join(t.TempDir(), "missing.csv")
	a := newTestApp(t, cfg)

	_, err := a.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestFindHolding(t *testing.T) {
	a := newTestApp(t, testConfig(t, testPortfolio))

	h, ok, err := a.FindHolding("XNAS:AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AAPL", h.ResolvedSymbol)

	h, ok, err = a.FindHolding("TEVA.TA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, h.Quantity.IntPart() == 100)

	_, ok, err = a.FindHolding("MSFT")
	require.NoError(t, err)
	assert.False(t, ok)
}

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := NewScheduler(common.NewSilentLogger())
	job := &countingJob{}

	require.NoError(t, s.AddJob("0 30 16 * * MON-FRI", job))
	assert.Error(t, s.AddJob("every day at noon", job))

	s.Start()
	assert.False(t, s.Next().IsZero())
	s.Stop()

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

// blockingJob holds its run open until release is closed
type blockingJob struct {
	started chan struct{}
	release chan struct{}
	runs    int
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run() error {
	j.runs++
	close(j.started)
	<-j.release
	return nil
}

func TestExclusive_SkipsOverlappingRun(t *testing.T) {
	inner := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	job := Exclusive(inner)
	s := NewScheduler(common.NewSilentLogger())

	done := make(chan error, 1)
	go func() { done <- s.RunNow(job) }()
	<-inner.started

	assert.ErrorIs(t, job.Run(), ErrJobRunning, "second run while the first is in flight")

	close(inner.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, inner.runs)
	assert.Equal(t, "blocking", job.Name())

	counting := Exclusive(&countingJob{})
	require.NoError(t, counting.Run())
	require.NoError(t, counting.Run(), "sequential runs are not skipped")
}

func TestStartScheduler_InvalidSpec(t *testing.T) {
	cfg := testConfig(t, testPortfolio)
	cfg.Schedule.Cron = "not a cron spec"
	a := newTestApp(t, cfg)

	assert.Error(t, a.StartScheduler())
}

func TestNewApp_FromConfigFile(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "")
	t.Setenv("DIGEST_EODHD_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DIGEST_GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "digest.toml")
	content := `
[provider]
name = "yahoo"

[cache]
backend = "memory"

[portfolio]
file = "` + filepath.ToSlash(filepath.Join(dir, "portfolio.csv")) + `"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	a, err := NewApp(configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "yahoo", a.Provider.Name())
	assert.NotNil(t, a.Gateway)
	assert.NotNil(t, a.ReportService)
	assert.NotNil(t, a.DetailService)
	assert.NotNil(t, a.Deliverer)
	assert.Nil(t, a.Archive, "archive is disabled by default")
	assert.False(t, a.StartupTime.IsZero())
}
