package codec

import (
	"fmt"
	"reflect"
	"time"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/dep2p/go-asap/pkg/types"
)

// cborFrame CBOR 线格式，字段名与 JSON 帧一致
type cborFrame struct {
	FrameType  string `cbor:"frameType"`
	ID         string `cbor:"id"`
	Deadline   int64  `cbor:"deadline,omitempty"`
	MessageKey string `cbor:"messageKey,omitempty"`
	Payload    any    `cbor:"payload,omitempty"`
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR 返回确定性 CBOR 帧编解码器
//
// 解码时 map 统一为 map[string]any，与 JSON 帧的 payload 形态一致。
func CBOR() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec{enc: em, dec: dm}, nil
}

func (cborCodec) Name() string { return NameCBOR }

func (c cborCodec) Encode(f *types.Frame) ([]byte, error) {
	if err := checkEncodable(f); err != nil {
		return nil, err
	}

	cf := cborFrame{FrameType: f.Type.String(), ID: f.ID}
	if f.Type == types.FrameMessage {
		cf.Deadline = f.Deadline.UnixMilli()
		cf.MessageKey = f.MessageKey
		cf.Payload = f.Payload
	}

	data, err := c.enc.Marshal(cf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return data, nil
}

func (c cborCodec) Decode(data []byte) (*types.Frame, error) {
	var cf cborFrame
	if err := c.dec.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	ft, err := types.ParseFrameType(cf.FrameType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	f := &types.Frame{Type: ft, ID: cf.ID}
	if ft == types.FrameMessage {
		f.Deadline = time.UnixMilli(cf.Deadline)
		f.MessageKey = cf.MessageKey
		f.Payload = cf.Payload
	}
	return checkDecoded(f)
}
