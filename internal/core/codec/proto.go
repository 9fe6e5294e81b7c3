package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dep2p/go-asap/pkg/types"
)

// protobuf 字段编号
//
//	message Frame {
//	  FrameType                 type        = 1;
//	  string                    id          = 2;
//	  google.protobuf.Timestamp deadline    = 3;
//	  string                    message_key = 4;
//	  google.protobuf.Value     payload     = 5;
//	}
const (
	fieldType       protowire.Number = 1
	fieldID         protowire.Number = 2
	fieldDeadline   protowire.Number = 3
	fieldMessageKey protowire.Number = 4
	fieldPayload    protowire.Number = 5
)

type protoCodec struct {
	mo proto.MarshalOptions
	uo proto.UnmarshalOptions
}

// Proto 返回 protobuf 帧编解码器
func Proto() Codec {
	return protoCodec{
		mo: proto.MarshalOptions{Deterministic: true},
		uo: proto.UnmarshalOptions{DiscardUnknown: true},
	}
}

func (protoCodec) Name() string { return NameProto }

func (c protoCodec) Encode(f *types.Frame) ([]byte, error) {
	if err := checkEncodable(f); err != nil {
		return nil, err
	}

	b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Type))
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, f.ID)

	if f.Type != types.FrameMessage {
		return b, nil
	}

	ts, err := c.mo.Marshal(timestamppb.New(f.Deadline))
	if err != nil {
		return nil, fmt.Errorf("%w: deadline: %w", ErrEncode, err)
	}
	value, err := toValue(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrEncode, err)
	}
	payload, err := c.mo.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrEncode, err)
	}

	b = protowire.AppendTag(b, fieldDeadline, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	b = protowire.AppendTag(b, fieldMessageKey, protowire.BytesType)
	b = protowire.AppendString(b, f.MessageKey)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b, nil
}

func (c protoCodec) Decode(data []byte) (*types.Frame, error) {
	f := &types.Frame{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(data)
			f.Type = types.FrameType(v)
		case num == fieldID && typ == protowire.BytesType:
			f.ID, n = protowire.ConsumeString(data)
		case num == fieldMessageKey && typ == protowire.BytesType:
			f.MessageKey, n = protowire.ConsumeString(data)
		case num == fieldDeadline && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n >= 0 {
				ts := &timestamppb.Timestamp{}
				if err := c.uo.Unmarshal(raw, ts); err != nil {
					return nil, fmt.Errorf("%w: deadline: %w", ErrDecode, err)
				}
				f.Deadline = ts.AsTime()
			}
		case num == fieldPayload && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(data)
			if n >= 0 {
				value := &structpb.Value{}
				if err := c.uo.Unmarshal(raw, value); err != nil {
					return nil, fmt.Errorf("%w: payload: %w", ErrDecode, err)
				}
				f.Payload = value.AsInterface()
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %w", ErrDecode, num, protowire.ParseError(n))
		}
		data = data[n:]
	}
	return checkDecoded(f)
}

// toValue 将任意 JSON 可序列化的值转换为 structpb.Value
//
// structpb.NewValue 只接受 []any / map[string]any 等基本形态，
// 其余类型（结构体、[]string 等）先经过一次 JSON 归一化。
func toValue(v any) (*structpb.Value, error) {
	if value, err := structpb.NewValue(v); err == nil {
		return value, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, err
	}
	return structpb.NewValue(normalized)
}
