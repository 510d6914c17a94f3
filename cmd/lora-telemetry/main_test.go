package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestEncodeTemperature(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		celsius float64
		want    []byte
	}{
		{24.0, []byte{0x00, 0x67, 0x00, 0xF0}},
		{0.0, []byte{0x00, 0x67, 0x00, 0x00}},
		{-5.25, []byte{0x00, 0x67, 0xFF, 0xCB}}, // -52.5 rounds to -53
		{27.56, []byte{0x00, 0x67, 0x01, 0x14}}, // 275.6 rounds to 276
	}
	for _, tc := range cases {
		c.Assert(encodeTemperature(tc.celsius), qt.DeepEquals, tc.want,
			qt.Commentf("%g degrees", tc.celsius))
	}
}

func TestReadSoCTemperature(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "temp")
	c.Assert(os.WriteFile(path, []byte("48312\n"), 0o644), qt.IsNil)

	got, err := readSoCTemperature(path)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, 48.312)

	_, err = readSoCTemperature(filepath.Join(t.TempDir(), "nope"))
	c.Assert(err, qt.IsNotNil)
}

func TestSendInterval(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		dataRate uint8
		want     time.Duration
	}{
		{7, 5 * time.Minute},
		{5, 5 * time.Minute},
		{4, 5 * time.Minute},
		{3, 10 * time.Minute},
		{2, 20 * time.Minute},
		{1, 30 * time.Minute},
		{0, time.Hour},
	}
	for _, tc := range cases {
		c.Assert(sendInterval(tc.dataRate), qt.Equals, tc.want,
			qt.Commentf("data rate %d", tc.dataRate))
	}
}
