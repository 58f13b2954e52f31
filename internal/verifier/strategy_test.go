package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/model"
)

// fakeVerifier records calls and answers "valid" unless failOn matches.
type fakeVerifier struct {
	mu         sync.Mutex
	calls      []string
	batchCalls int
	failOn     string
	delay      time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	perDomain   sync.Map // domain -> *atomic.Int32
	overlap     atomic.Bool
}

func (f *fakeVerifier) VerifyBatch(_ context.Context, emails []string) ([]model.Result, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()

	results := make([]model.Result, len(emails))
	for i, e := range emails {
		results[i] = model.Result{Email: e, Status: "valid"}
	}
	return results, nil
}

func (f *fakeVerifier) VerifyOne(_ context.Context, email string) (model.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	domain := email[strings.LastIndex(email, "@")+1:]
	counter, _ := f.perDomain.LoadOrStore(domain, &atomic.Int32{})
	if counter.(*atomic.Int32).Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer counter.(*atomic.Int32).Add(-1)

	f.mu.Lock()
	f.calls = append(f.calls, email)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if email == f.failOn {
		return model.Result{}, &StatusError{Code: http.StatusBadGateway}
	}
	return model.Result{Email: email, Status: "valid"}, nil
}

// collectProgress returns a ProgressFunc and a getter for the observed percentages.
func collectProgress() (ProgressFunc, func() []int) {
	var (
		mu       sync.Mutex
		percents []int
	)
	fn := func(p model.Progress) {
		mu.Lock()
		defer mu.Unlock()
		percents = append(percents, p.Percent)
	}
	get := func() []int {
		mu.Lock()
		defer mu.Unlock()
		return append([]int(nil), percents...)
	}
	return fn, get
}

func emailsOf(results []model.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Email
	}
	return out
}

// TestNewStrategy tests strategy selection by mode.
func TestNewStrategy(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{config.ModeBatch, config.ModeSequential, config.ModeConcurrent} {
		s, err := NewStrategy(mode, &fakeVerifier{}, 2, discardLogger())
		if err != nil {
			t.Fatalf("mode %s: unexpected error: %v", mode, err)
		}
		if s.Name() != mode {
			t.Errorf("expected name %s, got %s", mode, s.Name())
		}
	}

	if _, err := NewStrategy("parallel", &fakeVerifier{}, 2, nil); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

// TestBatchVerify tests the single-upload strategy.
func TestBatchVerify(t *testing.T) {
	t.Parallel()

	t.Run("reports progress once at 100", func(t *testing.T) {
		t.Parallel()

		fv := &fakeVerifier{}
		progress, got := collectProgress()
		s := &Batch{verifier: fv, logger: discardLogger()}

		results, err := s.Verify(context.Background(), []string{"a@x.com", "b@y.com", "c@z.com"}, progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 3 {
			t.Errorf("expected 3 results, got %d", len(results))
		}
		if !reflect.DeepEqual(got(), []int{100}) {
			t.Errorf("expected progress [100], got %v", got())
		}
		if fv.batchCalls != 1 {
			t.Errorf("expected 1 batch call, got %d", fv.batchCalls)
		}
	})

	t.Run("empty list sends nothing", func(t *testing.T) {
		t.Parallel()

		fv := &fakeVerifier{}
		progress, got := collectProgress()
		s := &Batch{verifier: fv, logger: discardLogger()}

		results, err := s.Verify(context.Background(), nil, progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
		if fv.batchCalls != 0 {
			t.Errorf("expected no batch call, got %d", fv.batchCalls)
		}
		if !reflect.DeepEqual(got(), []int{100}) {
			t.Errorf("expected progress [100], got %v", got())
		}
	})

	t.Run("non-array response reports no progress", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`"done"`))
		}))
		defer server.Close()

		progress, got := collectProgress()
		s, err := NewStrategy(config.ModeBatch, newTestClient(t, server.URL), 0, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		results, err := s.Verify(context.Background(), []string{"a@x.com"}, progress)
		if !errors.Is(err, ErrInvalidData) {
			t.Errorf("expected ErrInvalidData, got %v", err)
		}
		if results != nil {
			t.Errorf("expected no results, got %v", results)
		}
		if len(got()) != 0 {
			t.Errorf("expected no progress, got %v", got())
		}
	})

	t.Run("result count mismatch is an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"email":"a@x.com","status":"valid"}]`))
		}))
		defer server.Close()

		progress, got := collectProgress()
		s, err := NewStrategy(config.ModeBatch, newTestClient(t, server.URL), 0, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		results, err := s.Verify(context.Background(), []string{"a@x.com", "b@y.com"}, progress)
		if !errors.Is(err, ErrResultCount) {
			t.Fatalf("expected ErrResultCount, got %v", err)
		}
		if !strings.Contains(err.Error(), "sent 2, received 1") {
			t.Errorf("expected counts in error, got %v", err)
		}
		if results != nil {
			t.Errorf("expected no results, got %v", results)
		}
		if len(got()) != 0 {
			t.Errorf("expected no progress, got %v", got())
		}
	})
}

// TestSequentialVerify tests the one-request-per-email strategy.
func TestSequentialVerify(t *testing.T) {
	t.Parallel()

	t.Run("two emails are sent in order against a live server", func(t *testing.T) {
		t.Parallel()

		var (
			mu       sync.Mutex
			received []string
		)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Email string `json:"email"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)

			mu.Lock()
			received = append(received, req.Email)
			mu.Unlock()

			_ = json.NewEncoder(w).Encode(map[string]string{"email": req.Email, "status": "valid"})
		}))
		defer server.Close()

		progress, got := collectProgress()
		s, err := NewStrategy(config.ModeSequential, newTestClient(t, server.URL), 0, discardLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		results, err := s.Verify(context.Background(), []string{"a@x.com", "b@y.com"}, progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if !reflect.DeepEqual(received, []string{"a@x.com", "b@y.com"}) {
			t.Errorf("unexpected request order %v", received)
		}
		if !reflect.DeepEqual(got(), []int{50, 100}) {
			t.Errorf("expected progress [50 100], got %v", got())
		}
		if !reflect.DeepEqual(emailsOf(results), []string{"a@x.com", "b@y.com"}) {
			t.Errorf("unexpected results %v", results)
		}
	})

	t.Run("progress is floor of completed fraction", func(t *testing.T) {
		t.Parallel()

		progress, got := collectProgress()
		s := &Sequential{verifier: &fakeVerifier{}, logger: discardLogger()}

		if _, err := s.Verify(context.Background(), []string{"a@x.com", "b@x.com", "c@x.com"}, progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got(), []int{33, 66, 100}) {
			t.Errorf("expected progress [33 66 100], got %v", got())
		}
	})

	t.Run("first failure stops the run", func(t *testing.T) {
		t.Parallel()

		fv := &fakeVerifier{failOn: "b@y.com"}
		progress, got := collectProgress()
		s := &Sequential{verifier: fv, logger: discardLogger()}

		results, err := s.Verify(context.Background(), []string{"a@x.com", "b@y.com", "c@z.com"}, progress)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if !strings.Contains(err.Error(), "b@y.com") {
			t.Errorf("expected error to name the email, got %q", err.Error())
		}
		if results != nil {
			t.Errorf("expected no results, got %v", results)
		}
		if !reflect.DeepEqual(fv.calls, []string{"a@x.com", "b@y.com"}) {
			t.Errorf("expected calls to stop at the failure, got %v", fv.calls)
		}
		if !reflect.DeepEqual(got(), []int{33}) {
			t.Errorf("expected progress [33], got %v", got())
		}
	})

	t.Run("cancelled context stops before the first request", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		fv := &fakeVerifier{}
		s := &Sequential{verifier: fv, logger: discardLogger()}
		if _, err := s.Verify(ctx, []string{"a@x.com"}, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(fv.calls) != 0 {
			t.Errorf("expected no calls, got %v", fv.calls)
		}
	})
}

// TestGroupByDomain tests domain grouping for the concurrent strategy.
func TestGroupByDomain(t *testing.T) {
	t.Parallel()

	groups := groupByDomain([]string{"a@x.com", "b@Y.com", "broken", "c@X.COM", "d@y.com"})

	type flat struct {
		domain    string
		positions []int
	}
	got := make([]flat, len(groups))
	for i, g := range groups {
		got[i] = flat{g.domain, g.positions}
	}
	expected := []flat{
		{"x.com", []int{0, 3}},
		{"y.com", []int{1, 4}},
		{"invalid", []int{2}},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

// TestConcurrentVerify tests the per-domain parallel strategy.
func TestConcurrentVerify(t *testing.T) {
	t.Parallel()

	t.Run("results keep input order", func(t *testing.T) {
		t.Parallel()

		emails := []string{"a@x.com", "b@y.com", "c@z.com", "d@x.com", "e@y.com", "f@w.com"}
		fv := &fakeVerifier{delay: 5 * time.Millisecond}
		progress, got := collectProgress()

		s := NewConcurrent(fv, 2, discardLogger())
		results, err := s.Verify(context.Background(), emails, progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(emailsOf(results), emails) {
			t.Errorf("expected %v, got %v", emails, emailsOf(results))
		}

		percents := got()
		if len(percents) != len(emails) {
			t.Fatalf("expected %d progress reports, got %d", len(emails), len(percents))
		}
		for i := 1; i < len(percents); i++ {
			if percents[i] < percents[i-1] {
				t.Errorf("progress decreased: %v", percents)
			}
		}
		if percents[len(percents)-1] != 100 {
			t.Errorf("expected final progress 100, got %v", percents)
		}
		if fv.maxInFlight.Load() > 2 {
			t.Errorf("expected at most 2 requests in flight, got %d", fv.maxInFlight.Load())
		}
		if fv.overlap.Load() {
			t.Error("expected one request per domain at a time")
		}
	})

	t.Run("failure is returned", func(t *testing.T) {
		t.Parallel()

		fv := &fakeVerifier{failOn: "c@z.com"}
		s := NewConcurrent(fv, 3, discardLogger())

		results, err := s.Verify(context.Background(), []string{"a@x.com", "b@y.com", "c@z.com"}, nil)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if results != nil {
			t.Errorf("expected no results, got %v", results)
		}
	})

	t.Run("non-positive workers uses the default", func(t *testing.T) {
		t.Parallel()

		s := NewConcurrent(&fakeVerifier{}, 0, nil)
		if s.workers != config.DefaultWorkers {
			t.Errorf("expected %d workers, got %d", config.DefaultWorkers, s.workers)
		}
	})

	t.Run("empty list reports completion", func(t *testing.T) {
		t.Parallel()

		progress, got := collectProgress()
		results, err := NewConcurrent(&fakeVerifier{}, 2, discardLogger()).Verify(context.Background(), nil, progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %v", results)
		}
		if !reflect.DeepEqual(got(), []int{100}) {
			t.Errorf("expected progress [100], got %v", got())
		}
	})
}
