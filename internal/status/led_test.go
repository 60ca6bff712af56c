package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestLEDColors(t *testing.T) {
	r, g, b := &gpiotest.Pin{N: "R"}, &gpiotest.Pin{N: "G"}, &gpiotest.Pin{N: "B"}
	led := newLED(r, g, b, nil)

	led.Recording()
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High, gpio.Low}, []gpio.Level{r.L, g.L, b.L})

	led.Idle()
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.Low, gpio.High}, []gpio.Level{r.L, g.L, b.L})

	led.Halt()
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.Low, gpio.Low}, []gpio.Level{r.L, g.L, b.L})
}

func TestLEDMissingPins(t *testing.T) {
	g := &gpiotest.Pin{N: "G"}
	led := newLED(nil, g, nil, nil)
	led.Recording()
	assert.Equal(t, gpio.High, g.L)
	led.Idle()
	assert.Equal(t, gpio.Low, g.L)
}

func TestStartupBlink(t *testing.T) {
	r := &gpiotest.Pin{N: "R"}
	led := newLED(r, nil, nil, nil)
	waits := 0
	led.wait = func(time.Duration) { waits++ }

	led.StartupBlink(10, 250*time.Millisecond)
	assert.Equal(t, 10, waits)
	assert.Equal(t, gpio.Low, r.L)
}
