package login

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"energenius/pkg/client"
	"energenius/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	mu          sync.Mutex
	fieldErrors map[Field]string
	alert       string
	enabled     []bool
	redirects   []string
}

func newFakeView() *fakeView {
	return &fakeView{fieldErrors: map[Field]string{}}
}

func (v *fakeView) ShowFieldError(f Field, msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fieldErrors[f] = msg
}

func (v *fakeView) ClearFieldError(f Field) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.fieldErrors, f)
}

func (v *fakeView) ShowAlert(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alert = msg
}

func (v *fakeView) HideAlert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alert = ""
}

func (v *fakeView) SetSubmitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = append(v.enabled, enabled)
}

func (v *fakeView) Redirect(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.redirects = append(v.redirects, url)
}

type fakeAuth struct {
	calls   int
	block   chan struct{}
	started chan struct{}
	resp    *models.LoginResponse
	err     error
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	a.calls++
	if a.started != nil {
		close(a.started)
	}
	if a.block != nil {
		<-a.block
	}
	return a.resp, a.err
}

func TestValidate(t *testing.T) {
	assert.Equal(t, "Username is required", ValidateUsername("   "))
	assert.Equal(t, "Username must be at least 3 characters", ValidateUsername(" ab "))
	assert.Empty(t, ValidateUsername("ana"))
	assert.Equal(t, "Password is required", ValidatePassword(""))
	assert.Equal(t, "Password must be at least 6 characters", ValidatePassword("12345"))
	assert.Empty(t, ValidatePassword("123456"))
}

func TestBlurShowsAndClearsFieldErrors(t *testing.T) {
	view := newFakeView()
	c := NewController(&fakeAuth{}, view)

	assert.NotEmpty(t, c.Blur(FieldUsername, "a"))
	assert.Contains(t, view.fieldErrors, FieldUsername)

	assert.Empty(t, c.Blur(FieldUsername, "ana"))
	assert.NotContains(t, view.fieldErrors, FieldUsername)
}

func TestSubmitBlocksInvalidInput(t *testing.T) {
	for name, tc := range map[string]struct{ user, pass string }{
		"empty username": {"", "secret123"},
		"short username": {"an", "secret123"},
		"empty password": {"ana", ""},
		"short password": {"ana", "123"},
		"both missing":   {"", ""},
	} {
		t.Run(name, func(t *testing.T) {
			view := newFakeView()
			auth := &fakeAuth{}
			c := NewController(auth, view)

			err := c.Submit(context.Background(), tc.user, tc.pass)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, auth.calls)
			assert.NotEmpty(t, view.fieldErrors)
			assert.Empty(t, view.redirects)
		})
	}
}

func TestSubmitSuccessRedirects(t *testing.T) {
	view := newFakeView()
	auth := &fakeAuth{resp: &models.LoginResponse{Success: true, Redirect: "/dashboard.html"}}
	c := NewController(auth, view)

	require.NoError(t, c.Submit(context.Background(), " ana ", "secret123"))
	assert.Equal(t, []string{"/dashboard.html"}, view.redirects)
	assert.Equal(t, []bool{false, true}, view.enabled)
	assert.True(t, c.SubmitEnabled())
}

func TestSubmitFailureShowsAlert(t *testing.T) {
	view := newFakeView()
	auth := &fakeAuth{err: &client.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid username or password"}}
	c := NewController(auth, view)

	err := c.Submit(context.Background(), "ana", "wrong-pass")
	require.Error(t, err)
	assert.Empty(t, view.redirects)
	assert.Equal(t, "Invalid username or password", view.alert)
	assert.Equal(t, "Invalid username or password", c.Alert())
	assert.True(t, c.SubmitEnabled())

	c.DismissAlert()
	assert.Empty(t, view.alert)
	assert.Empty(t, c.Alert())

	auth.err = errors.New("connection refused")
	require.Error(t, c.Submit(context.Background(), "ana", "wrong-pass"))
	assert.Equal(t, genericLoginError, view.alert)
}

func TestSubmitSingleFlight(t *testing.T) {
	view := newFakeView()
	auth := &fakeAuth{
		block:   make(chan struct{}),
		started: make(chan struct{}),
		resp:    &models.LoginResponse{Success: true},
	}
	c := NewController(auth, view)

	errc := make(chan error, 1)
	go func() { errc <- c.Submit(context.Background(), "ana", "secret123") }()
	<-auth.started

	assert.False(t, c.SubmitEnabled())
	assert.ErrorIs(t, c.Submit(context.Background(), "ana", "secret123"), ErrSubmitInFlight)

	close(auth.block)
	require.NoError(t, <-errc)
	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, []string{DefaultRedirect}, view.redirects)
}

type fakeCarouselView struct {
	mu       sync.Mutex
	slides   []int
	progress float64
}

func (v *fakeCarouselView) ShowSlide(i int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.slides = append(v.slides, i)
}

func (v *fakeCarouselView) SetProgress(p float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.progress = p
}

func TestCarouselWraps(t *testing.T) {
	c := NewCarousel(TotalSlides, nil)

	c.Prev()
	assert.Equal(t, 5, c.Index())
	c.Next()
	assert.Equal(t, 0, c.Index())

	for i := 0; i < 13; i++ {
		c.Next()
	}
	assert.Equal(t, 1, c.Index())

	c.GoTo(-1)
	assert.Equal(t, 5, c.Index())
	c.GoTo(8)
	assert.Equal(t, 2, c.Index())

	for i := -20; i < 20; i++ {
		c.GoTo(i)
		idx := c.Index()
		assert.True(t, idx >= 0 && idx < TotalSlides)
	}
}

func TestCarouselAutoAdvance(t *testing.T) {
	view := &fakeCarouselView{}
	c := NewCarousel(3, view, WithIntervals(100*time.Millisecond, 10*time.Millisecond))

	c.Start(context.Background())
	defer c.Stop()

	assert.Eventually(t, func() bool { return c.Index() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return c.Progress() > 0 }, time.Second, 5*time.Millisecond)
}

func TestCarouselManualMoveResetsProgress(t *testing.T) {
	c := NewCarousel(TotalSlides, nil, WithIntervals(time.Hour, 10*time.Millisecond))
	c.Start(context.Background())
	defer c.Stop()

	assert.Eventually(t, func() bool { return c.Progress() > 0 }, time.Second, 5*time.Millisecond)
	c.GoTo(3)
	assert.Equal(t, 3, c.Index())
	assert.Less(t, c.Progress(), 0.01)
}

func TestCarouselStop(t *testing.T) {
	c := NewCarousel(TotalSlides, nil, WithIntervals(20*time.Millisecond, 5*time.Millisecond))
	c.Start(context.Background())
	c.Stop()
	c.Stop()

	idx := c.Index()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, idx, c.Index())
}
