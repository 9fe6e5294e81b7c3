package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dep2p/go-asap/pkg/types"
)

// jsonFrame JSON 线格式
//
//	{"frameType":"message","id":"...","deadline":1700000000000,"messageKey":"...","payload":...}
//	{"frameType":"receipt","id":"..."}
type jsonFrame struct {
	FrameType  string          `json:"frameType"`
	ID         string          `json:"id"`
	Deadline   int64           `json:"deadline,omitempty"`
	MessageKey string          `json:"messageKey,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type jsonCodec struct{}

// JSON 返回 JSON 帧编解码器
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return NameJSON }

func (jsonCodec) Encode(f *types.Frame) ([]byte, error) {
	if err := checkEncodable(f); err != nil {
		return nil, err
	}

	jf := jsonFrame{FrameType: f.Type.String(), ID: f.ID}
	if f.Type == types.FrameMessage {
		payload, err := json.Marshal(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload: %w", ErrEncode, err)
		}
		jf.Deadline = f.Deadline.UnixMilli()
		jf.MessageKey = f.MessageKey
		jf.Payload = payload
	}

	data, err := json.Marshal(jf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte) (*types.Frame, error) {
	var jf jsonFrame
	if err := json.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	ft, err := types.ParseFrameType(jf.FrameType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	f := &types.Frame{Type: ft, ID: jf.ID}
	if ft == types.FrameMessage {
		f.Deadline = time.UnixMilli(jf.Deadline)
		f.MessageKey = jf.MessageKey
		if len(jf.Payload) > 0 {
			if err := json.Unmarshal(jf.Payload, &f.Payload); err != nil {
				return nil, fmt.Errorf("%w: payload: %w", ErrDecode, err)
			}
		}
	}
	return checkDecoded(f)
}
