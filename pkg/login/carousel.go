package login

import (
	"context"
	"sync"
	"time"
)

// スライドショーの既定値
const (
	TotalSlides       = 6
	AutoSlideInterval = 5 * time.Second
	ProgressTick      = 50 * time.Millisecond
)

// CarouselView はスライドショーの表示
type CarouselView interface {
	ShowSlide(index int)
	SetProgress(fraction float64)
}

// Carousel は背景画像のスライドショー。
// 自動送りと進捗バーの2つのタイマーを持ち、手動操作のたびに両方をリセットします。
type Carousel struct {
	mu       sync.Mutex
	index    int
	total    int
	elapsed  time.Duration
	interval time.Duration
	tick     time.Duration
	view     CarouselView

	restart chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// CarouselOption はCarouselの設定を変更する
type CarouselOption func(*Carousel)

// WithIntervals は自動送りと進捗更新の間隔を変更する
func WithIntervals(interval, tick time.Duration) CarouselOption {
	return func(c *Carousel) {
		c.interval = interval
		c.tick = tick
	}
}

// NewCarousel は新しいCarouselを生成します。totalが1未満なら1枚として扱います。
func NewCarousel(total int, view CarouselView, opts ...CarouselOption) *Carousel {
	if total < 1 {
		total = 1
	}
	c := &Carousel{
		total:    total,
		interval: AutoSlideInterval,
		tick:     ProgressTick,
		view:     view,
		restart:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Index は現在のスライド番号を返す
func (c *Carousel) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Progress は次のスライドまでの進捗（0〜1）を返す
func (c *Carousel) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

func (c *Carousel) progressLocked() float64 {
	p := float64(c.elapsed) / float64(c.interval)
	if p > 1 {
		return 1
	}
	return p
}

// Next は次のスライドへ進む
func (c *Carousel) Next() { c.move(1, true) }

// Prev は前のスライドへ戻る
func (c *Carousel) Prev() { c.move(-1, true) }

// GoTo は指定したスライドへ移動する。範囲外の番号は循環させる。
func (c *Carousel) GoTo(index int) {
	c.mu.Lock()
	c.index = c.wrap(index)
	c.elapsed = 0
	idx := c.index
	c.mu.Unlock()

	c.render(idx, 0)
	c.resetTimers()
}

func (c *Carousel) move(delta int, manual bool) {
	c.mu.Lock()
	c.index = c.wrap(c.index + delta)
	c.elapsed = 0
	idx := c.index
	c.mu.Unlock()

	c.render(idx, 0)
	if manual {
		c.resetTimers()
	}
}

func (c *Carousel) wrap(i int) int {
	return ((i % c.total) + c.total) % c.total
}

func (c *Carousel) render(index int, progress float64) {
	if c.view == nil {
		return
	}
	c.view.ShowSlide(index)
	c.view.SetProgress(progress)
}

func (c *Carousel) resetTimers() {
	select {
	case c.restart <- struct{}{}:
	default:
	}
}

// Start は自動送りを開始します。ctxがキャンセルされるかStopで停止します。
func (c *Carousel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.run(ctx, done)
}

// Stop は自動送りを停止し、ゴルーチンの終了を待ちます
func (c *Carousel) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Carousel) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	slide := time.NewTicker(c.interval)
	defer slide.Stop()
	progress := time.NewTicker(c.tick)
	defer progress.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.restart:
			slide.Reset(c.interval)
			progress.Reset(c.tick)
		case <-slide.C:
			c.move(1, false)
		case <-progress.C:
			c.mu.Lock()
			c.elapsed += c.tick
			p := c.progressLocked()
			c.mu.Unlock()
			if c.view != nil {
				c.view.SetProgress(p)
			}
		}
	}
}
