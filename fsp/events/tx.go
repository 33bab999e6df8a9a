package events

import (
	"encoding/binary"
	"fmt"

	"flarewatch/sign"
)

// ParseError marks a transaction input that doesn't conform to the expected
// submit1/submit2/submitSignatures wire layout. Per spec.md §7 these are
// silently discarded by the caller: the same four-byte selectors are shared
// by unrelated contracts and proxies, so a parse failure on any one
// transaction carries no significance on its own.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse tx: " + e.Reason }

func parseError(format string, args ...any) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// Function selectors for the Submission contract, recovered from
// original_source/observer/observer.py's SUBMIT1/SUBMIT2/SUBMIT_SIG
// constants (first 4 bytes of Keccak-256 of the canonical function
// signature).
var (
	Submit1Selector          = [4]byte{0x6c, 0x53, 0x2f, 0xae}
	Submit2Selector          = [4]byte{0x9d, 0x00, 0xc9, 0xfd}
	SubmitSignaturesSelector = [4]byte{0x57, 0xee, 0xd5, 0x80}
)

const (
	protocolFTSO uint8 = 100
	protocolFDC  uint8 = 200
)

// feedValueSentinel marks a feed slot as having no reported value ("None" in
// the source's vocabulary): a 4-byte all-ones word can never be a valid
// scaled price, so it's used as the absent-value marker.
var feedValueSentinel = [4]byte{0xff, 0xff, 0xff, 0xff}

// FeedValue is one position in an FTSO submit2 payload's value vector.
type FeedValue struct {
	Present bool
	Raw     [4]byte
}

// Submit1Payload is the per-protocol body of a submit1 (commit) transaction.
type Submit1Payload struct {
	VotingRoundID uint32
	CommitHash    [32]byte
}

// Submit2Payload is the per-protocol body of a submit2 (reveal) transaction.
// FTSO payloads carry Rnd and Values; FDC payloads carry only RequestBytes
// (the bitvote body, opaque to this engine per spec.md §4.4).
type Submit2Payload struct {
	VotingRoundID uint32
	Rnd           [32]byte
	Values        []FeedValue
	RequestBytes  []byte
}

// FeedBytes reconstructs the raw bytes CommitHash was computed over: the
// concatenation of every value slot's 4 bytes, present or not.
func (p Submit2Payload) FeedBytes() []byte {
	out := make([]byte, 0, len(p.Values)*4)
	for _, v := range p.Values {
		out = append(out, v.Raw[:]...)
	}
	return out
}

// EmptyIndices returns the positional indices of value slots with no
// reported value, for the "submit 2 had 'None' on indices ..." message.
func (p Submit2Payload) EmptyIndices() []int {
	var idx []int
	for i, v := range p.Values {
		if !v.Present {
			idx = append(idx, i)
		}
	}
	return idx
}

// SubmitSignaturesPayload is the per-protocol body of a submitSignatures
// transaction.
type SubmitSignaturesPayload struct {
	VotingRoundID uint32
	Signature     sign.Signature
}

// ParsedSubmission holds the decoded FTSO and/or FDC sub-payloads of one
// submit1/submit2/submitSignatures transaction; either may be absent
// depending on which protocols that transaction carried data for.
type ParsedSubmission[T any] struct {
	FTSO *T
	FDC  *T
}

// envelope is the shared outer wire layout this repo uses for all three
// Submission entry points once the 4-byte selector has been stripped:
//
//	[1 byte protocol count n][n * protocol entry]
//	protocol entry = [1 byte protocol id][2 byte big-endian length][length bytes]
//
// This concretizes the wire format spec.md §6 leaves to an external
// collaborator (py_flare_common, not present in the retrieval pack) well
// enough for the validation engine to exercise end to end; see DESIGN.md.
func splitEnvelope(body []byte) (map[uint8][]byte, error) {
	if len(body) < 1 {
		return nil, parseError("empty body")
	}
	n := int(body[0])
	pos := 1
	out := make(map[uint8][]byte, n)
	for i := 0; i < n; i++ {
		if pos+3 > len(body) {
			return nil, parseError("truncated protocol entry header at index %d", i)
		}
		protocolID := body[pos]
		length := int(binary.BigEndian.Uint16(body[pos+1 : pos+3]))
		pos += 3
		if pos+length > len(body) {
			return nil, parseError("truncated protocol entry body at index %d", i)
		}
		out[protocolID] = body[pos : pos+length]
		pos += length
	}
	return out, nil
}

// ParseSubmit1 parses a submit1 transaction body (selector already
// stripped).
func ParseSubmit1(body []byte) (ParsedSubmission[Submit1Payload], error) {
	var out ParsedSubmission[Submit1Payload]
	entries, err := splitEnvelope(body)
	if err != nil {
		return out, err
	}
	for protocolID, raw := range entries {
		p, err := parseSubmit1Payload(raw)
		if err != nil {
			return out, err
		}
		switch protocolID {
		case protocolFTSO:
			out.FTSO = &p
		case protocolFDC:
			out.FDC = &p
		}
	}
	return out, nil
}

func parseSubmit1Payload(raw []byte) (Submit1Payload, error) {
	if len(raw) != 4+32 {
		return Submit1Payload{}, parseError("submit1 payload: want 36 bytes, got %d", len(raw))
	}
	var p Submit1Payload
	p.VotingRoundID = binary.BigEndian.Uint32(raw[0:4])
	copy(p.CommitHash[:], raw[4:36])
	return p, nil
}

// ParseSubmit2 parses a submit2 transaction body (selector already
// stripped).
func ParseSubmit2(body []byte) (ParsedSubmission[Submit2Payload], error) {
	var out ParsedSubmission[Submit2Payload]
	entries, err := splitEnvelope(body)
	if err != nil {
		return out, err
	}
	for protocolID, raw := range entries {
		switch protocolID {
		case protocolFTSO:
			p, err := parseFTSOSubmit2Payload(raw)
			if err != nil {
				return out, err
			}
			out.FTSO = &p
		case protocolFDC:
			p, err := parseFDCSubmit2Payload(raw)
			if err != nil {
				return out, err
			}
			out.FDC = &p
		}
	}
	return out, nil
}

func parseFTSOSubmit2Payload(raw []byte) (Submit2Payload, error) {
	if len(raw) < 4+32 {
		return Submit2Payload{}, parseError("ftso submit2 payload: too short (%d bytes)", len(raw))
	}
	if (len(raw)-36)%4 != 0 {
		return Submit2Payload{}, parseError("ftso submit2 payload: value section not a multiple of 4 bytes")
	}
	var p Submit2Payload
	p.VotingRoundID = binary.BigEndian.Uint32(raw[0:4])
	copy(p.Rnd[:], raw[4:36])

	rest := raw[36:]
	p.Values = make([]FeedValue, len(rest)/4)
	for i := range p.Values {
		var word [4]byte
		copy(word[:], rest[i*4:i*4+4])
		p.Values[i] = FeedValue{Present: word != feedValueSentinel, Raw: word}
	}
	return p, nil
}

func parseFDCSubmit2Payload(raw []byte) (Submit2Payload, error) {
	if len(raw) < 4 {
		return Submit2Payload{}, parseError("fdc submit2 payload: too short (%d bytes)", len(raw))
	}
	var p Submit2Payload
	p.VotingRoundID = binary.BigEndian.Uint32(raw[0:4])
	p.RequestBytes = append([]byte(nil), raw[4:]...)
	return p, nil
}

// ParseSubmitSignatures parses a submitSignatures transaction body (selector
// already stripped).
func ParseSubmitSignatures(body []byte) (ParsedSubmission[SubmitSignaturesPayload], error) {
	var out ParsedSubmission[SubmitSignaturesPayload]
	entries, err := splitEnvelope(body)
	if err != nil {
		return out, err
	}
	for protocolID, raw := range entries {
		p, err := parseSubmitSignaturesPayload(raw)
		if err != nil {
			return out, err
		}
		switch protocolID {
		case protocolFTSO:
			out.FTSO = &p
		case protocolFDC:
			out.FDC = &p
		}
	}
	return out, nil
}

func parseSubmitSignaturesPayload(raw []byte) (SubmitSignaturesPayload, error) {
	if len(raw) != 4+32+32+1 {
		return SubmitSignaturesPayload{}, parseError("submitSignatures payload: want 69 bytes, got %d", len(raw))
	}
	var p SubmitSignaturesPayload
	p.VotingRoundID = binary.BigEndian.Uint32(raw[0:4])
	copy(p.Signature.R[:], raw[4:36])
	copy(p.Signature.S[:], raw[36:68])
	p.Signature.V = raw[68]
	return p, nil
}
