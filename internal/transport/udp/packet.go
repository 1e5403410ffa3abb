// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"doppler/internal/analysis"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Kind              | uint8          | 1            | Payload type            |
| Payload           | see below      | variable     |                         |
+-----------------------------------------------------------------------------+

KindPeaks payload (24 bytes):

| First Bin | First Hz | First dB | Second Bin | Second Hz | Second dB |
|  uint32   | float32  | float32  |   uint32   |  float32  |  float32  |

KindMotion payload (25 bytes):

| State | Bin    | Hz      | Left dB | Right dB | Stable Left | Stable Right |
| uint8 | uint32 | float32 | float32 | float32  | float32     | float32      |

KindSpectrum payload (6 + N*4 bytes):

| Resolution Hz | Bin Count (N) | Magnitudes dB |
|   float32     |    uint16     | N * float32   |
*/

// Kind identifies the payload of a packet.
type Kind uint8

const (
	KindPeaks    Kind = 1
	KindMotion   Kind = 2
	KindSpectrum Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindPeaks:
		return "peaks"
	case KindMotion:
		return "motion"
	case KindSpectrum:
		return "spectrum"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// HeaderSize is the fixed length of every packet header.
const HeaderSize = 13

// maxDatagram is the largest UDP payload over IPv4.
const maxDatagram = 65507

// MaxSpectrumBins is the largest bin count a spectrum packet can carry.
// Longer frames are truncated to their lowest bins.
const MaxSpectrumBins = (maxDatagram - HeaderSize - 6) / 4

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp packet too short")

type header struct {
	Sequence  uint32
	Timestamp int64
	Kind      uint8
}

type peaksPayload struct {
	FirstBin        uint32
	FirstFrequency  float32
	FirstMagnitude  float32
	SecondBin       uint32
	SecondFrequency float32
	SecondMagnitude float32
}

type motionPayload struct {
	State       uint8
	Bin         uint32
	Frequency   float32
	Left        float32
	Right       float32
	StableLeft  float32
	StableRight float32
}

type spectrumHeader struct {
	Resolution float32
	Count      uint16
}

// Packet is a decoded datagram. Exactly one of Peaks, Motion and Spectrum
// is set, matching Kind.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Kind      Kind
	Peaks     *analysis.PeakPair
	Motion    *analysis.MotionReading
	Spectrum  *analysis.SpectrumFrame
}

func writeHeader(buf *bytes.Buffer, seq uint32, ts time.Time, kind Kind) error {
	return binary.Write(buf, binary.BigEndian, header{
		Sequence:  seq,
		Timestamp: ts.UnixNano(),
		Kind:      uint8(kind),
	})
}

// encodeResult appends the packet for r to buf.
func encodeResult(buf *bytes.Buffer, seq uint32, r analysis.Result) error {
	switch {
	case r.Peaks != nil:
		if err := writeHeader(buf, seq, r.Timestamp, KindPeaks); err != nil {
			return err
		}
		p := r.Peaks
		return binary.Write(buf, binary.BigEndian, peaksPayload{
			FirstBin:        uint32(p.First.Bin),
			FirstFrequency:  float32(p.First.Frequency),
			FirstMagnitude:  float32(p.First.Magnitude),
			SecondBin:       uint32(p.Second.Bin),
			SecondFrequency: float32(p.Second.Frequency),
			SecondMagnitude: float32(p.Second.Magnitude),
		})
	case r.Motion != nil:
		if err := writeHeader(buf, seq, r.Timestamp, KindMotion); err != nil {
			return err
		}
		m := r.Motion
		return binary.Write(buf, binary.BigEndian, motionPayload{
			State:       uint8(m.State),
			Bin:         uint32(m.Bin),
			Frequency:   float32(m.Frequency),
			Left:        float32(m.Left),
			Right:       float32(m.Right),
			StableLeft:  float32(m.StableLeft),
			StableRight: float32(m.StableRight),
		})
	default:
		return fmt.Errorf("result %d carries neither peaks nor motion", r.Sequence)
	}
}

// encodeSpectrum appends a spectrum packet to buf. scratch is reused for
// the float32 conversion and returned, possibly grown.
func encodeSpectrum(buf *bytes.Buffer, seq uint32, ts time.Time, frame analysis.SpectrumFrame, scratch []float32) ([]float32, error) {
	n := min(frame.Len(), MaxSpectrumBins)
	if cap(scratch) < n {
		scratch = make([]float32, n)
	}
	scratch = scratch[:n]
	for i := range n {
		scratch[i] = float32(frame.Bins[i])
	}

	err := writeHeader(buf, seq, ts, KindSpectrum)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, spectrumHeader{
			Resolution: float32(frame.Resolution),
			Count:      uint16(n),
		})
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, scratch)
	}
	return scratch, err
}

// DecodePacket parses one datagram produced by Publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}

	rd := bytes.NewReader(data)
	var h header
	if err := binary.Read(rd, binary.BigEndian, &h); err != nil {
		return Packet{}, fmt.Errorf("failed to read header: %w", err)
	}

	pkt := Packet{
		Sequence:  h.Sequence,
		Timestamp: time.Unix(0, h.Timestamp),
		Kind:      Kind(h.Kind),
	}

	switch pkt.Kind {
	case KindPeaks:
		var p peaksPayload
		if err := binary.Read(rd, binary.BigEndian, &p); err != nil {
			return Packet{}, fmt.Errorf("%w: peaks payload: %w", ErrShortPacket, err)
		}
		pkt.Peaks = &analysis.PeakPair{
			First: analysis.PeakCandidate{
				Bin:       int(p.FirstBin),
				Frequency: float64(p.FirstFrequency),
				Magnitude: float64(p.FirstMagnitude),
			},
			Second: analysis.PeakCandidate{
				Bin:       int(p.SecondBin),
				Frequency: float64(p.SecondFrequency),
				Magnitude: float64(p.SecondMagnitude),
			},
		}
	case KindMotion:
		var m motionPayload
		if err := binary.Read(rd, binary.BigEndian, &m); err != nil {
			return Packet{}, fmt.Errorf("%w: motion payload: %w", ErrShortPacket, err)
		}
		pkt.Motion = &analysis.MotionReading{
			State:       analysis.MotionState(m.State),
			Bin:         int(m.Bin),
			Frequency:   float64(m.Frequency),
			Left:        float64(m.Left),
			Right:       float64(m.Right),
			StableLeft:  float64(m.StableLeft),
			StableRight: float64(m.StableRight),
		}
	case KindSpectrum:
		var sh spectrumHeader
		if err := binary.Read(rd, binary.BigEndian, &sh); err != nil {
			return Packet{}, fmt.Errorf("%w: spectrum header: %w", ErrShortPacket, err)
		}
		mags := make([]float32, sh.Count)
		if err := binary.Read(rd, binary.BigEndian, mags); err != nil {
			return Packet{}, fmt.Errorf("%w: spectrum bins: %w", ErrShortPacket, err)
		}
		bins := make([]float64, len(mags))
		for i, v := range mags {
			bins[i] = float64(v)
		}
		pkt.Spectrum = &analysis.SpectrumFrame{Bins: bins, Resolution: float64(sh.Resolution)}
	default:
		return Packet{}, fmt.Errorf("unknown packet kind %d", h.Kind)
	}

	return pkt, nil
}
