// Package stealth provides anti-bot detection techniques for browser automation.
// It implements human-like timing, input, and movement patterns to avoid
// detection by anti-automation systems.
package stealth

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
)

// Distribution selects how HumanDelay draws its duration.
type Distribution string

const (
	DistUniform     Distribution = "uniform"
	DistNormal      Distribution = "normal"
	DistExponential Distribution = "exponential"
)

// StealthManager handles all anti-detection operations
type StealthManager struct {
	config *config.StealthConfig
	logger *logger.Logger
	rand   *rand.Rand
}

// NewStealthManager creates a new stealth manager
func NewStealthManager(cfg *config.StealthConfig, log *logger.Logger) *StealthManager {
	return &StealthManager{
		config: cfg,
		logger: log.WithModule("stealth"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Point represents a 2D coordinate
type Point struct {
	X, Y float64
}

// ==============================================================================
// TECHNIQUE 1: Randomized Timing
// ==============================================================================

// HumanDelay suspends the caller for a duration drawn from the chosen
// distribution, clamped to [min, max] seconds, and returns the realized
// delay in seconds. The suspension honors context cancellation.
func (s *StealthManager) HumanDelay(ctx context.Context, min, max float64, dist Distribution) float64 {
	d := s.sampleDelay(min, max, dist)
	s.sleep(ctx, time.Duration(d*float64(time.Second)))
	return d
}

// sampleDelay draws a delay in seconds without sleeping.
func (s *StealthManager) sampleDelay(min, max float64, dist Distribution) float64 {
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}

	var d float64
	switch dist {
	case DistNormal:
		// stddev of (max-min)/6 keeps ~99.7% of draws in range before clamping
		mean := (min + max) / 2
		stddev := (max - min) / 6
		d = s.rand.NormFloat64()*stddev + mean
	case DistExponential:
		mean := (min + max) / 2
		d = s.rand.ExpFloat64() * mean
	default:
		d = min + s.rand.Float64()*(max-min)
	}

	return math.Max(min, math.Min(max, d))
}

// ShouldPerform is a Bernoulli gate for probabilistic actions.
func (s *StealthManager) ShouldPerform(probability float64) bool {
	return s.rand.Float64() < probability
}

// EngagementCount returns an integer in [min, max], skewed toward min.
// Used to pick counts like "how many posts to like" — humans usually do
// a couple, rarely many.
func (s *StealthManager) EngagementCount(min, max int) int {
	if max <= min {
		return min
	}
	span := float64(max - min)
	n := min + int(s.rand.ExpFloat64()*span/3)
	if n > max {
		n = max
	}
	if n < min {
		n = min
	}
	return n
}

// ScrollParameters returns a scroll distance in pixels and a duration in
// seconds. Magnitude is a weighted categorical choice: small 30%,
// medium 50%, large 20%.
func (s *StealthManager) ScrollParameters() (int, float64) {
	type scrollClass struct {
		weight              float64
		distMin, distMax    int
		durMin, durMax      float64
	}
	classes := []scrollClass{
		{0.3, 200, 400, 0.4, 0.8},
		{0.5, 400, 800, 0.8, 1.5},
		{0.2, 800, 1400, 1.5, 2.5},
	}

	r := s.rand.Float64()
	acc := 0.0
	chosen := classes[len(classes)-1]
	for _, c := range classes {
		acc += c.weight
		if r < acc {
			chosen = c
			break
		}
	}

	distance := chosen.distMin + s.rand.Intn(chosen.distMax-chosen.distMin+1)
	duration := chosen.durMin + s.rand.Float64()*(chosen.durMax-chosen.durMin)
	return distance, duration
}

// ActionDelay adds a human-like delay between actions
func (s *StealthManager) ActionDelay(ctx context.Context) {
	s.HumanDelay(ctx, s.config.ActionDelayMin, s.config.ActionDelayMax, DistUniform)
}

// ThinkingDelay simulates human cognitive processing time
func (s *StealthManager) ThinkingDelay(ctx context.Context) {
	base := 1.0 + s.rand.Float64()*3.0
	// Occasionally add extra "consideration" time
	if s.rand.Float64() < 0.2 {
		base += 2.0 + s.rand.Float64()*3.0
	}
	s.sleep(ctx, time.Duration(base*float64(time.Second)))
	s.logger.StealthAction("thinking_delay", map[string]interface{}{"duration_s": base})
}

// PageLoadDelay waits for a page to settle with natural variation
func (s *StealthManager) PageLoadDelay(ctx context.Context) {
	s.HumanDelay(ctx, s.config.PageLoadWaitMin, s.config.PageLoadWaitMax, DistNormal)
}

// sleep suspends for d, returning early if ctx is cancelled.
func (s *StealthManager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ==============================================================================
// TECHNIQUE 2: Realistic Typing Simulation
// ==============================================================================

// HumanType types text with human-like cadence derived from a
// words-per-minute rate: per-character jitter, longer pauses after
// punctuation, occasional "thinking" pauses, and simulated typos.
func (s *StealthManager) HumanType(ctx context.Context, page *rod.Page, element *rod.Element, text string) error {
	runes := []rune(text)

	wpm := s.config.TypingWPM
	if wpm <= 0 {
		wpm = 40
	}
	variance := s.config.TypingVariance
	// Average English word is ~5 characters
	baseDelay := 60.0 / (wpm * 5.0)

	for i := 0; i < len(runes); i++ {
		char := runes[i]

		delay := baseDelay * (1 + (s.rand.Float64()*2-1)*variance)

		// Longer pause after punctuation (2-4x)
		if i > 0 && strings.ContainsRune(".,!?;:", runes[i-1]) {
			delay *= 2 + s.rand.Float64()*2
		}

		// 2% chance per character of an extra 1-3s thinking pause
		if s.rand.Float64() < 0.02 {
			s.sleep(ctx, time.Duration((1+s.rand.Float64()*2)*float64(time.Second)))
		}

		// Simulate typing mistakes
		if s.config.TypingMistakeRate > 0 && s.rand.Float64() < s.config.TypingMistakeRate {
			wrongChar := s.getAdjacentKey(char)
			if err := element.Input(string(wrongChar)); err != nil {
				return err
			}
			s.sleep(ctx, time.Duration(100+s.rand.Intn(200))*time.Millisecond)

			page.Keyboard.Press(input.Backspace)
			s.sleep(ctx, time.Duration(50+s.rand.Intn(100))*time.Millisecond)
		}

		if err := element.Input(string(char)); err != nil {
			return err
		}

		s.sleep(ctx, time.Duration(delay*float64(time.Second)))
	}

	s.logger.StealthAction("typing", map[string]interface{}{
		"length": len(text),
		"wpm":    wpm,
	})

	return nil
}

// getAdjacentKey returns a key adjacent to the given key on a QWERTY keyboard
func (s *StealthManager) getAdjacentKey(char rune) rune {
	adjacentKeys := map[rune][]rune{
		'a': {'s', 'q', 'z'},
		'b': {'v', 'n', 'g', 'h'},
		'c': {'x', 'v', 'd', 'f'},
		'd': {'s', 'f', 'e', 'r', 'c', 'x'},
		'e': {'w', 'r', 'd', 's'},
		'f': {'d', 'g', 'r', 't', 'v', 'c'},
		'g': {'f', 'h', 't', 'y', 'b', 'v'},
		'h': {'g', 'j', 'y', 'u', 'n', 'b'},
		'i': {'u', 'o', 'k', 'j'},
		'j': {'h', 'k', 'u', 'i', 'm', 'n'},
		'k': {'j', 'l', 'i', 'o', 'm'},
		'l': {'k', 'o', 'p'},
		'm': {'n', 'j', 'k'},
		'n': {'b', 'm', 'h', 'j'},
		'o': {'i', 'p', 'k', 'l'},
		'p': {'o', 'l'},
		'q': {'w', 'a'},
		'r': {'e', 't', 'd', 'f'},
		's': {'a', 'd', 'w', 'e', 'z', 'x'},
		't': {'r', 'y', 'f', 'g'},
		'u': {'y', 'i', 'h', 'j'},
		'v': {'c', 'b', 'f', 'g'},
		'w': {'q', 'e', 'a', 's'},
		'x': {'z', 'c', 's', 'd'},
		'y': {'t', 'u', 'g', 'h'},
		'z': {'a', 'x'},
	}

	lowerChar := char
	if char >= 'A' && char <= 'Z' {
		lowerChar = char + 32
	}

	if adjacent, ok := adjacentKeys[lowerChar]; ok {
		result := adjacent[s.rand.Intn(len(adjacent))]
		if char >= 'A' && char <= 'Z' {
			result -= 32
		}
		return result
	}
	return char
}

// ==============================================================================
// TECHNIQUE 3: Human-like Mouse Movement (Bézier curves with variable speed)
// ==============================================================================

// MoveMouse moves the mouse from current position to target with human-like motion
func (s *StealthManager) MoveMouse(page *rod.Page, targetX, targetY float64) error {
	currentX, currentY := s.getApproximateMousePosition(page)

	points := s.generateBezierPath(
		Point{currentX, currentY},
		Point{targetX, targetY},
	)

	if s.config.MouseOvershoot && s.rand.Float64() < 0.3 {
		points = s.addOvershoot(points, targetX, targetY)
	}

	for i, point := range points {
		// Variable delay between movements (faster in middle, slower at ends)
		delay := s.calculateMovementDelay(i, len(points))
		time.Sleep(time.Duration(delay) * time.Millisecond)

		err := page.Mouse.MoveLinear(proto.NewPoint(point.X, point.Y), 1)
		if err != nil {
			return err
		}

		// Micro-corrections at the end
		if s.config.MouseMicroCorrect && i > len(points)-5 {
			s.addMicroCorrection(page, point.X, point.Y)
		}
	}

	s.logger.StealthAction("mouse_move", map[string]interface{}{
		"to_x": targetX, "to_y": targetY,
		"steps": len(points),
	})

	return nil
}

// generateBezierPath creates a curved path between two points using cubic Bézier
func (s *StealthManager) generateBezierPath(start, end Point) []Point {
	distance := math.Sqrt(math.Pow(end.X-start.X, 2) + math.Pow(end.Y-start.Y, 2))
	numSteps := int(distance/10) + 10 // More steps for longer distances

	offsetRange := distance * 0.3
	ctrl1 := Point{
		X: start.X + (end.X-start.X)*0.25 + (s.rand.Float64()-0.5)*offsetRange,
		Y: start.Y + (end.Y-start.Y)*0.25 + (s.rand.Float64()-0.5)*offsetRange,
	}
	ctrl2 := Point{
		X: start.X + (end.X-start.X)*0.75 + (s.rand.Float64()-0.5)*offsetRange,
		Y: start.Y + (end.Y-start.Y)*0.75 + (s.rand.Float64()-0.5)*offsetRange,
	}

	points := make([]Point, numSteps)
	for i := 0; i < numSteps; i++ {
		t := float64(i) / float64(numSteps-1)
		points[i] = s.cubicBezier(t, start, ctrl1, ctrl2, end)
	}

	return points
}

// cubicBezier calculates a point on a cubic Bézier curve
func (s *StealthManager) cubicBezier(t float64, p0, p1, p2, p3 Point) Point {
	u := 1 - t
	tt := t * t
	uu := u * u
	uuu := uu * u
	ttt := tt * t

	return Point{
		X: uuu*p0.X + 3*uu*t*p1.X + 3*u*tt*p2.X + ttt*p3.X,
		Y: uuu*p0.Y + 3*uu*t*p1.Y + 3*u*tt*p2.Y + ttt*p3.Y,
	}
}

// addOvershoot adds natural overshoot past the target
func (s *StealthManager) addOvershoot(points []Point, targetX, targetY float64) []Point {
	overshootX := (s.rand.Float64()*10 + 5) * s.randomSign()
	overshootY := (s.rand.Float64()*10 + 5) * s.randomSign()

	overshootPoint := Point{X: targetX + overshootX, Y: targetY + overshootY}
	points = append(points, overshootPoint)

	// Correct back to target
	correctionSteps := 3 + s.rand.Intn(3)
	for i := 0; i < correctionSteps; i++ {
		t := float64(i+1) / float64(correctionSteps)
		points = append(points, Point{
			X: overshootPoint.X + (targetX-overshootPoint.X)*t,
			Y: overshootPoint.Y + (targetY-overshootPoint.Y)*t,
		})
	}

	return points
}

// addMicroCorrection adds small random movements near the target
func (s *StealthManager) addMicroCorrection(page *rod.Page, x, y float64) {
	microX := x + (s.rand.Float64()-0.5)*2
	microY := y + (s.rand.Float64()-0.5)*2
	time.Sleep(time.Duration(5+s.rand.Intn(10)) * time.Millisecond)
	page.Mouse.MoveLinear(proto.NewPoint(microX, microY), 1)
}

// calculateMovementDelay returns variable delay (ease-in-out effect)
func (s *StealthManager) calculateMovementDelay(step, totalSteps int) int {
	// Sine wave for smooth acceleration/deceleration
	progress := float64(step) / float64(totalSteps)
	easeFactor := math.Sin(progress * math.Pi)

	minDelay := int(s.config.MouseSpeedMin * 5)
	maxDelay := int(s.config.MouseSpeedMax * 15)

	// Slower at start and end, faster in middle
	delay := maxDelay - int(float64(maxDelay-minDelay)*easeFactor)
	return delay + s.rand.Intn(3)
}

// getApproximateMousePosition gets current mouse position
func (s *StealthManager) getApproximateMousePosition(page *rod.Page) (float64, float64) {
	// Default to page center if position unknown
	return 683, 384 // Common half-HD viewport center
}

// ==============================================================================
// TECHNIQUE 4: Random Scrolling Behavior
// ==============================================================================

// HumanScroll performs natural scrolling on the page: the total amount is
// covered in variable increments with sine-eased speed, and occasionally
// followed by a small scroll back (re-reading behavior).
func (s *StealthManager) HumanScroll(page *rod.Page, direction string, amount int) error {
	// Vary the scroll amount slightly
	actualAmount := amount + s.rand.Intn(100) - 50
	if actualAmount < 50 {
		actualAmount = 50
	}

	scrolled := 0
	for scrolled < actualAmount {
		increment := 60 + s.rand.Intn(100)
		if scrolled+increment > actualAmount {
			increment = actualAmount - scrolled
		}

		// Natural acceleration/deceleration
		progress := float64(scrolled) / float64(actualAmount)
		speedFactor := math.Sin(progress * math.Pi) // Faster in middle
		delay := int(float64(30) / (speedFactor + 0.3))

		deltaY := float64(increment)
		if direction == "up" {
			deltaY = -deltaY
		}

		err := page.Mouse.Scroll(0, deltaY, 1)
		if err != nil {
			return err
		}

		scrolled += increment
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}

	if s.rand.Float64() < s.config.ScrollBackChance {
		backAmount := 50 + s.rand.Intn(100)
		s.scrollBack(page, direction, backAmount)
	}

	s.logger.StealthAction("scroll", map[string]interface{}{
		"direction": direction,
		"amount":    actualAmount,
	})

	return nil
}

// scrollBack performs a small scroll in the opposite direction
func (s *StealthManager) scrollBack(page *rod.Page, originalDirection string, amount int) {
	time.Sleep(time.Duration(200+s.rand.Intn(300)) * time.Millisecond)

	deltaY := float64(amount)
	if originalDirection == "down" {
		deltaY = -deltaY
	}
	page.Mouse.Scroll(0, deltaY, 5)
}

// ==============================================================================
// TECHNIQUE 5: Browser Fingerprint Masking
// ==============================================================================

// ApplyFingerprintMasking applies various browser fingerprint modifications
func (s *StealthManager) ApplyFingerprintMasking(page *rod.Page) error {
	scripts := []string{}

	// Disable webdriver flag
	if s.config.DisableWebdriver {
		scripts = append(scripts, `
			Object.defineProperty(navigator, 'webdriver', {
				get: () => undefined
			});

			// Remove automation-related properties
			delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
			delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
			delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
		`)
	}

	// Mask Chrome automation flags
	scripts = append(scripts, `
		Object.defineProperty(navigator, 'plugins', {
			get: () => [
				{name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer'},
				{name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai'},
				{name: 'Native Client', filename: 'internal-nacl-plugin'}
			]
		});

		Object.defineProperty(navigator, 'languages', {
			get: () => ['en-US', 'en']
		});

		const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications' ?
				Promise.resolve({ state: Notification.permission }) :
				originalQuery(parameters)
		);

		Object.defineProperty(screen, 'availWidth', { get: () => screen.width });
		Object.defineProperty(screen, 'availHeight', { get: () => screen.height - 40 });
	`)

	for _, script := range scripts {
		_, err := page.Eval(script)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to apply fingerprint mask")
			// Continue with other scripts even if one fails
		}
	}

	s.logger.StealthAction("fingerprint_mask", map[string]interface{}{"scripts_applied": len(scripts)})
	return nil
}

// GetRandomUserAgent returns a random, realistic user agent string
func (s *StealthManager) GetRandomUserAgent() string {
	userAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	}
	return userAgents[s.rand.Intn(len(userAgents))]
}

// GetRandomViewport returns randomized viewport dimensions
func (s *StealthManager) GetRandomViewport() (int, int) {
	viewports := []struct{ width, height int }{
		{1920, 1080},
		{1366, 768},
		{1536, 864},
		{1440, 900},
		{1280, 720},
		{1600, 900},
	}
	vp := viewports[s.rand.Intn(len(viewports))]
	// Add slight random variation
	return vp.width + s.rand.Intn(20) - 10, vp.height + s.rand.Intn(20) - 10
}

// ==============================================================================
// TECHNIQUE 6: Mouse Hovering & Random Movement
// ==============================================================================

// HoverElement hovers over an element naturally
func (s *StealthManager) HoverElement(page *rod.Page, element *rod.Element) error {
	box, err := element.Shape()
	if err != nil {
		return err
	}

	quad := box.Quads[0]
	// Random position within element bounds
	x := quad[0] + (quad[2]-quad[0])*s.rand.Float64()*0.6 + (quad[2]-quad[0])*0.2
	y := quad[1] + (quad[5]-quad[1])*s.rand.Float64()*0.6 + (quad[5]-quad[1])*0.2

	err = s.MoveMouse(page, x, y)
	if err != nil {
		return err
	}

	hoverTime := 200 + s.rand.Intn(500)
	time.Sleep(time.Duration(hoverTime) * time.Millisecond)

	return nil
}

// RandomMouseWander performs random mouse movements to simulate idle behavior
func (s *StealthManager) RandomMouseWander(page *rod.Page) error {
	numMoves := 2 + s.rand.Intn(4)

	for i := 0; i < numMoves; i++ {
		x := 100 + s.rand.Float64()*1000
		y := 100 + s.rand.Float64()*500

		err := s.MoveMouse(page, x, y)
		if err != nil {
			return err
		}

		time.Sleep(time.Duration(300+s.rand.Intn(700)) * time.Millisecond)
	}

	s.logger.StealthAction("mouse_wander", map[string]interface{}{"movements": numMoves})
	return nil
}

// ==============================================================================
// Helper functions
// ==============================================================================

// RandomFloat returns a uniform float in [min, max).
func (s *StealthManager) RandomFloat(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + s.rand.Float64()*(max-min)
}

// RandomInt returns a uniform integer in [min, max] inclusive.
func (s *StealthManager) RandomInt(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rand.Intn(max-min+1)
}

func (s *StealthManager) randomSign() float64 {
	if s.rand.Float64() < 0.5 {
		return -1
	}
	return 1
}

// ClickElement performs a human-like click on an element
func (s *StealthManager) ClickElement(page *rod.Page, element *rod.Element) error {
	// First hover over the element
	err := s.HoverElement(page, element)
	if err != nil {
		return err
	}

	// Small delay before clicking
	time.Sleep(time.Duration(50+s.rand.Intn(150)) * time.Millisecond)

	err = element.Click(proto.InputMouseButtonLeft, 1)
	if err != nil {
		return err
	}

	// Small delay after clicking
	time.Sleep(time.Duration(100+s.rand.Intn(200)) * time.Millisecond)

	return nil
}
