// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"net"
	"testing"
	"time"

	"doppler/internal/analysis"
	"doppler/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 4, 13, 12, 0, 0, 123456789, time.UTC)

// listen opens a loopback socket and a Publisher aimed at it.
func listen(t *testing.T) (*net.UDPConn, *Publisher) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sender, err := NewSender(conn.LocalAddr().String())
	require.NoError(t, err)
	pub, err := NewPublisher(sender)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	return conn, pub
}

func receive(t *testing.T, conn *net.UDPConn) Packet {
	t.Helper()
	buf := make([]byte, maxDatagram)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	pkt, err := DecodePacket(buf[:n])
	require.NoError(t, err)
	return pkt
}

func TestPublisherSendsResults(t *testing.T) {
	conn, pub := listen(t)

	require.NoError(t, pub.Send(analysis.Result{
		Sequence:  10,
		Timestamp: testTime,
		Mode:      analysis.ModePeaks,
		Peaks: &analysis.PeakPair{
			First:  analysis.PeakCandidate{Bin: 333, Frequency: 1000.25, Magnitude: -6.5},
			Second: analysis.PeakCandidate{Bin: 400, Frequency: 1199.75, Magnitude: -11},
		},
	}))
	require.NoError(t, pub.Send(analysis.Result{
		Sequence:  11,
		Timestamp: testTime.Add(time.Second),
		Mode:      analysis.ModeDoppler,
		Motion: &analysis.MotionReading{
			State: analysis.Withdrawing, Bin: 333, Frequency: 999,
			Left: -40, Right: -60, StableLeft: -55, StableRight: -60,
		},
	}))

	peaks := receive(t, conn)
	assert.Equal(t, uint32(1), peaks.Sequence)
	assert.Equal(t, KindPeaks, peaks.Kind)
	assert.True(t, testTime.Equal(peaks.Timestamp))
	require.NotNil(t, peaks.Peaks)
	assert.Equal(t, 333, peaks.Peaks.First.Bin)
	assert.InDelta(t, 1000.25, peaks.Peaks.First.Frequency, 1e-3)
	assert.InDelta(t, 1199.75, peaks.Peaks.Second.Frequency, 1e-3)
	assert.InDelta(t, -11, peaks.Peaks.Second.Magnitude, 1e-6)

	motion := receive(t, conn)
	assert.Equal(t, uint32(2), motion.Sequence)
	assert.Equal(t, KindMotion, motion.Kind)
	require.NotNil(t, motion.Motion)
	assert.Equal(t, analysis.Withdrawing, motion.Motion.State)
	assert.InDelta(t, -40, motion.Motion.Left, 1e-6)
	assert.InDelta(t, -55, motion.Motion.StableLeft, 1e-6)
}

func TestPublisherRejectsEmptyResult(t *testing.T) {
	_, pub := listen(t)
	assert.Error(t, pub.Send(analysis.Result{Sequence: 1}))
}

// fixedSnapshot always returns the same spectrum.
type fixedSnapshot struct {
	snap session.Snapshot
	err  error
}

func (f fixedSnapshot) Snapshot() (session.Snapshot, error) { return f.snap, f.err }

func TestPublisherStreamsSpectrum(t *testing.T) {
	conn, pub := listen(t)
	pub.now = func() time.Time { return testTime }

	bins := []float64{-200, -120.5, -6.25, -80}
	src := fixedSnapshot{snap: session.Snapshot{
		Spectrum: analysis.SpectrumFrame{Bins: bins, Resolution: 3},
	}}

	require.NoError(t, pub.StartSpectrum(src, 10*time.Millisecond))
	assert.Error(t, pub.StartSpectrum(src, 10*time.Millisecond), "already running")

	pkt := receive(t, conn)
	assert.Equal(t, KindSpectrum, pkt.Kind)
	require.NotNil(t, pkt.Spectrum)
	assert.InDelta(t, 3.0, pkt.Spectrum.Resolution, 1e-9)
	assert.InDeltaSlice(t, bins, pkt.Spectrum.Bins, 1e-4)

	pub.Stop()
	pub.Stop()
}

func TestSenderClosed(t *testing.T) {
	sender, err := NewSender("127.0.0.1:9")
	require.NoError(t, err)
	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send([]byte{1}), ErrSenderClosed)
}

func TestNewSenderBadAddress(t *testing.T) {
	_, err := NewSender("localhost")
	assert.Error(t, err)
}

func TestDecodePacketErrors(t *testing.T) {
	_, err := DecodePacket([]byte{0, 1, 2})
	assert.ErrorIs(t, err, ErrShortPacket)

	var buf bytes.Buffer
	require.NoError(t, writeHeader(&buf, 1, testTime, KindPeaks))
	_, err = DecodePacket(buf.Bytes())
	assert.ErrorIs(t, err, ErrShortPacket, "header without payload")

	buf.Reset()
	require.NoError(t, writeHeader(&buf, 1, testTime, Kind(9)))
	_, err = DecodePacket(buf.Bytes())
	assert.ErrorContains(t, err, "unknown packet kind")
}

func TestEncodeSpectrumTruncates(t *testing.T) {
	frame := analysis.SpectrumFrame{Bins: make([]float64, MaxSpectrumBins+10), Resolution: 1}

	var buf bytes.Buffer
	scratch, err := encodeSpectrum(&buf, 1, testTime, frame, nil)
	require.NoError(t, err)
	assert.Len(t, scratch, MaxSpectrumBins)
	assert.LessOrEqual(t, buf.Len(), maxDatagram)

	pkt, err := DecodePacket(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, MaxSpectrumBins, pkt.Spectrum.Len())
}

func TestPacketSizes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeader(&buf, 1, testTime, KindPeaks))
	assert.Equal(t, HeaderSize, buf.Len())

	buf.Reset()
	require.NoError(t, encodeResult(&buf, 1, analysis.Result{Peaks: &analysis.PeakPair{}}))
	assert.Equal(t, HeaderSize+24, buf.Len())

	buf.Reset()
	require.NoError(t, encodeResult(&buf, 1, analysis.Result{Motion: &analysis.MotionReading{}}))
	assert.Equal(t, HeaderSize+25, buf.Len())
}
