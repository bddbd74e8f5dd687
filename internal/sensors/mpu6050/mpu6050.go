// Package mpu6050 reads the GY-521 accelerometer and turns gravity into a
// tilt angle.
package mpu6050

import (
	"fmt"
	"math"
	"time"

	"torpedo/internal/i2c"
)

var sleep = time.Sleep

const (
	addrDefault = 0x68

	regSmplrtDiv  = 0x19
	regConfig     = 0x1A
	regAccelCfg   = 0x1C
	regAccelXoutH = 0x3B
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75
	whoAmIVal     = 0x68

	bitReset   = 0x80
	clkPLLGyrX = 0x01
	dlpf44Hz   = 0x03
	fsAccel2g  = 0x00

	// Samples averaged per smoothed reading.
	smoothSamples  = 10
	smoothInterval = 10 * time.Millisecond
)

// Sample is one raw accelerometer reading in g.
type Sample struct {
	Ax, Ay, Az float64
}

// Angles are degrees derived from the gravity vector. Tilt is the angle
// between the sensor Z axis and vertical.
type Angles struct {
	Roll  float64
	Pitch float64
	Tilt  float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

type Device struct {
	dev   regIO
	scale float64
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mpu6050: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	who, err := dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("mpu6050: whoami read failed: %w", err)
	}
	// Clones report 0x70/0x72 as well; accept those too.
	if who != whoAmIVal && who != 0x70 && who != 0x72 {
		return nil, fmt.Errorf("mpu6050: whoami=0x%02X want 0x%02X", who, whoAmIVal)
	}

	d := &Device{dev: dev}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("mpu6050: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)

	if err := d.dev.WriteReg(regPwrMgmt1, clkPLLGyrX); err != nil {
		return fmt.Errorf("mpu6050: wake failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	_ = d.dev.WriteReg(regConfig, dlpf44Hz)
	_ = d.dev.WriteReg(regSmplrtDiv, 19) // 1kHz/(1+19) = 50Hz
	if err := d.dev.WriteReg(regAccelCfg, fsAccel2g); err != nil {
		return fmt.Errorf("mpu6050: accel config failed: %w", err)
	}
	d.scale = 1.0 / 16384.0
	return nil
}

func (d *Device) Read() (Sample, error) {
	var buf [6]byte
	if err := d.dev.ReadReg(regAccelXoutH, buf[:]); err != nil {
		return Sample{}, fmt.Errorf("mpu6050: read accel failed: %w", err)
	}
	ax := int16(buf[0])<<8 | int16(buf[1])
	ay := int16(buf[2])<<8 | int16(buf[3])
	az := int16(buf[4])<<8 | int16(buf[5])
	return Sample{
		Ax: float64(ax) * d.scale,
		Ay: float64(ay) * d.scale,
		Az: float64(az) * d.scale,
	}, nil
}

// SmoothedAngles averages several samples before computing angles, which
// damps ripple on the liquid surface.
func (d *Device) SmoothedAngles() (Angles, error) {
	var sum Sample
	for i := 0; i < smoothSamples; i++ {
		s, err := d.Read()
		if err != nil {
			return Angles{}, err
		}
		sum.Ax += s.Ax
		sum.Ay += s.Ay
		sum.Az += s.Az
		if i < smoothSamples-1 {
			sleep(smoothInterval)
		}
	}
	n := float64(smoothSamples)
	return anglesOf(Sample{Ax: sum.Ax / n, Ay: sum.Ay / n, Az: sum.Az / n})
}

// Tilt returns the smoothed tilt angle in degrees.
func (d *Device) Tilt() (float64, error) {
	a, err := d.SmoothedAngles()
	if err != nil {
		return 0, err
	}
	return a.Tilt, nil
}

func anglesOf(s Sample) (Angles, error) {
	norm := math.Sqrt(s.Ax*s.Ax + s.Ay*s.Ay + s.Az*s.Az)
	if norm < 1e-6 {
		return Angles{}, fmt.Errorf("mpu6050: zero gravity vector")
	}
	deg := 180 / math.Pi
	return Angles{
		Roll:  math.Atan2(s.Ay, s.Az) * deg,
		Pitch: math.Atan2(-s.Ax, math.Hypot(s.Ay, s.Az)) * deg,
		Tilt:  math.Acos(s.Az/norm) * deg,
	}, nil
}
