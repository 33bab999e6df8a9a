package observer

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"flarewatch/chainio"
	"flarewatch/fsp/events"
)

// eventSpec pairs one ABI event's indexed (topic) and non-indexed (data)
// argument lists, split once at load time so DecodeLog never has to
// re-derive it per log.
type eventSpec struct {
	name    string
	indexed abi.Arguments
	data    abi.Arguments
}

// ABIDecoder implements LogDecoder by unpacking a log generically from its
// contract ABI, keyed by the log's topic0, then handing the resulting field
// map to events.Decode. The ABI JSON itself — naming the Flare system
// contracts' actual event signatures — is supplied externally at deploy
// time; loading and maintaining that manifest is the out-of-scope "contract
// ABI loading" collaborator spec.md §1/§6 carve out, so nothing here hard-codes
// an event signature.
type ABIDecoder struct {
	byTopic map[common.Hash]eventSpec
}

// NewABIDecoder merges the events of one or more parsed contract ABIs into a
// single topic-keyed decoder. Anonymous events are skipped: they carry no
// topic0 and this repo has no use for them.
func NewABIDecoder(abis ...abi.ABI) *ABIDecoder {
	d := &ABIDecoder{byTopic: make(map[common.Hash]eventSpec)}
	for _, a := range abis {
		for _, ev := range a.Events {
			if ev.Anonymous {
				continue
			}
			var indexed, data abi.Arguments
			for _, arg := range ev.Inputs {
				if arg.Indexed {
					indexed = append(indexed, arg)
				} else {
					data = append(data, arg)
				}
			}
			d.byTopic[ev.ID] = eventSpec{name: ev.Name, indexed: indexed, data: data}
		}
	}
	return d
}

// LoadABIFiles parses one ABI JSON file per configured contract and merges
// all of their events into a single decoder.
func LoadABIFiles(paths []string) (*ABIDecoder, error) {
	parsed := make([]abi.ABI, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("observer: open abi file %s: %w", p, err)
		}
		a, err := abi.JSON(f)
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("observer: parse abi file %s: %w", p, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("observer: close abi file %s: %w", p, closeErr)
		}
		parsed = append(parsed, a)
	}
	return NewABIDecoder(parsed...), nil
}

// DecodeLog implements LogDecoder. A topic0 this decoder doesn't recognize
// (an event from a contract not in its manifest, or one this repo doesn't
// model) decodes to KindUnknown with no error: callers treat that as "skip",
// not "fail the block".
func (d *ABIDecoder) DecodeLog(log chainio.Log, blockTimestampS int64) (events.Kind, any, error) {
	if len(log.Topics) == 0 {
		return events.KindUnknown, nil, nil
	}
	spec, ok := d.byTopic[log.Topics[0]]
	if !ok {
		return events.KindUnknown, nil, nil
	}

	record := make(events.Record, len(spec.indexed)+len(spec.data))
	if len(spec.data) > 0 {
		if err := spec.data.UnpackIntoMap(record, log.Data); err != nil {
			return events.KindUnknown, nil, fmt.Errorf("observer: unpack %s data: %w", spec.name, err)
		}
	}
	if len(spec.indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(record, spec.indexed, log.Topics[1:]); err != nil {
			return events.KindUnknown, nil, fmt.Errorf("observer: unpack %s topics: %w", spec.name, err)
		}
	}

	return events.Decode(spec.name, record, blockTimestampS)
}
