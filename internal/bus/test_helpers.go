package bus

// Test helpers exposing a couple of internal knobs that table-driven bus
// tests want direct control over.

// SetFrameBufferForTesting overwrites the PPU's framebuffer, letting
// tests assert on render output without stepping a full frame.
func (b *Bus) SetFrameBufferForTesting(frameBuffer [256 * 240]uint32) {
	b.PPU.FrameBuffer = frameBuffer
}

// StepWithError is Step with an error return for test call sites
// written against the convention that emulation steps can fail; the
// current core has no fallible step path, so it always returns nil.
func (b *Bus) StepWithError() error {
	b.Step()
	return nil
}
