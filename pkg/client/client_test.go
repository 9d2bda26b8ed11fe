package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/integrail/gsearch/pkg/client/dto"
)

type scriptedServer struct {
	*httptest.Server
	calls    atomic.Int32
	statuses []int
	bodies   []string
	lastBody atomic.Value
}

func newScriptedServer(t *testing.T, statuses []int, bodies []string) *scriptedServer {
	s := &scriptedServer{statuses: statuses, bodies: bodies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(s.calls.Add(1)) - 1
		body, _ := io.ReadAll(r.Body)
		s.lastBody.Store(r.Header.Get("Content-Type") + " " + string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.statuses[i])
		if i < len(s.bodies) {
			_, _ = w.Write([]byte(s.bodies[i]))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(sleeps *recordedSleeps, opts ...Option) Client {
	opts = append([]Option{
		withSleep(sleeps.sleep),
		withJitter(func(time.Duration) time.Duration { return 250 * time.Millisecond }),
	}, opts...)
	return NewClient(5*time.Second, opts...)
}

func TestSendSucceedsFirstAttempt(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{200}, []string{`{"candidates":[]}`})
	sleeps := &recordedSleeps{}

	res, err := newTestClient(sleeps).Send(context.Background(), srv.URL, dto.NewSearchGroundedRequest("hi"), DefaultRetryPolicy())
	Expect(err).To(BeNil())
	Expect(res.Attempts).To(Equal(1))
	Expect(string(res.Body)).To(Equal(`{"candidates":[]}`))
	Expect(sleeps.delays).To(BeEmpty())
	Expect(srv.lastBody.Load()).To(Equal(`application/json {"contents":[{"parts":[{"text":"hi"}]}],"tools":[{"google_search":{}}]}`))
}

func TestSendExhaustsRetriesOn503(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{503, 503, 503}, []string{"", "", `{"error":{"message":"model overloaded"}}`})
	sleeps := &recordedSleeps{}

	res, err := newTestClient(sleeps).Send(context.Background(), srv.URL, map[string]string{}, DefaultRetryPolicy())
	Expect(res).To(BeNil())
	Expect(srv.calls.Load()).To(Equal(int32(3)))

	var reqErr *RequestError
	Expect(errors.As(err, &reqErr)).To(BeTrue())
	Expect(reqErr.Kind).To(Equal(KindTerminal))
	Expect(reqErr.StatusCode).To(Equal(503))
	Expect(reqErr.Attempts).To(Equal(3))
	Expect(reqErr.Error()).To(Equal("model overloaded"))
	Expect(sleeps.delays).To(Equal([]time.Duration{1250 * time.Millisecond, 2250 * time.Millisecond}))
}

func TestSendRecoversAfterTransientFailures(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{503, 429, 200}, []string{"", "", `{"ok":true}`})
	sleeps := &recordedSleeps{}

	res, err := newTestClient(sleeps).Send(context.Background(), srv.URL, map[string]string{}, DefaultRetryPolicy())
	Expect(err).To(BeNil())
	Expect(res.Attempts).To(Equal(3))
	Expect(srv.calls.Load()).To(Equal(int32(3)))
	Expect(sleeps.delays).To(HaveLen(2))
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{400}, []string{`{"error":{"code":400,"message":"API key not valid"}}`})
	sleeps := &recordedSleeps{}

	_, err := newTestClient(sleeps).Send(context.Background(), srv.URL, map[string]string{}, DefaultRetryPolicy())
	Expect(srv.calls.Load()).To(Equal(int32(1)))
	Expect(sleeps.delays).To(BeEmpty())
	Expect(err).To(MatchError("API key not valid"))
}

func TestSendFallsBackToStatusMessage(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{404}, []string{`not json`})

	_, err := newTestClient(&recordedSleeps{}).Send(context.Background(), srv.URL, map[string]string{}, DefaultRetryPolicy())
	Expect(err).To(MatchError("API request failed with status 404"))
}

func TestSendSingleAttemptWhenRetriesDisabled(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{500}, nil)
	sleeps := &recordedSleeps{}

	_, err := newTestClient(sleeps).Send(context.Background(), srv.URL, map[string]string{}, RetryPolicy{MaxAttempts: 0})
	Expect(err).To(MatchError("API request failed with status 500"))
	Expect(srv.calls.Load()).To(Equal(int32(1)))
	Expect(sleeps.delays).To(BeEmpty())
}

type failingTransport struct {
	calls atomic.Int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestSendRetriesTransportErrors(t *testing.T) {
	RegisterTestingT(t)

	transport := &failingTransport{}
	sleeps := &recordedSleeps{}
	var retried []int
	policy := DefaultRetryPolicy()
	policy.OnRetry = func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	}

	c := newTestClient(sleeps, WithHTTPClient(&http.Client{Transport: transport}))
	_, err := c.Send(context.Background(), "http://generative.invalid/v1/models/m:generateContent?key=secret", map[string]string{}, policy)

	Expect(transport.calls.Load()).To(Equal(int32(3)))
	Expect(retried).To(Equal([]int{1, 2}))

	var reqErr *RequestError
	Expect(errors.As(err, &reqErr)).To(BeTrue())
	Expect(reqErr.Kind).To(Equal(KindTransport))
	Expect(reqErr.Error()).To(Equal("connection refused"))
	Expect(reqErr.Error()).ToNot(ContainSubstring("secret"))
}

func TestSendStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{503, 503, 503}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(5*time.Second, withSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}))

	_, err := c.Send(ctx, srv.URL, map[string]string{}, DefaultRetryPolicy())
	Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	Expect(srv.calls.Load()).To(Equal(int32(1)))
}

func TestSendRecordsMetrics(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{500, 200}, nil)
	metrics, err := NewMetrics(prometheus.NewRegistry())
	Expect(err).To(BeNil())

	_, err = newTestClient(&recordedSleeps{}, WithMetrics(metrics)).Send(context.Background(), srv.URL, map[string]string{}, DefaultRetryPolicy())
	Expect(err).To(BeNil())
	Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues("retry"))).To(Equal(1.0))
	Expect(testutil.ToFloat64(metrics.attempts.WithLabelValues("success"))).To(Equal(1.0))
	Expect(testutil.ToFloat64(metrics.retries)).To(Equal(1.0))
}

func TestSendZeroValuePolicyStillBacksOffWithJitter(t *testing.T) {
	RegisterTestingT(t)

	srv := newScriptedServer(t, []int{503, 503, 503}, nil)
	sleeps := &recordedSleeps{}
	c := NewClient(5*time.Second, withSleep(sleeps.sleep))

	_, err := c.Send(context.Background(), srv.URL, map[string]string{}, RetryPolicy{MaxAttempts: 3})
	Expect(err).To(MatchError("API request failed with status 503"))
	Expect(srv.calls.Load()).To(Equal(int32(3)))
	Expect(sleeps.delays).To(HaveLen(2))
	for i, delay := range sleeps.delays {
		low := time.Duration(1<<i) * time.Second
		Expect(delay).To(BeNumerically(">=", low))
		Expect(delay).To(BeNumerically("<", low+time.Second))
	}
}
