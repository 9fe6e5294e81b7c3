// Package codec 实现链路帧的编解码
//
// 三种可互换的线格式：
//   - json:  与原始对端兼容的 JSON 帧（deadline 为 Unix 毫秒）
//   - proto: protobuf 线格式，payload 为 structpb.Value，deadline 为 Timestamp
//   - cbor:  与 JSON 字段名相同的确定性 CBOR
//
// 所有解码结果都经过 Frame.Validate 校验。
package codec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dep2p/go-asap/pkg/types"
)

// 编解码器名称
const (
	NameJSON  = "json"
	NameProto = "proto"
	NameCBOR  = "cbor"
)

// 编解码错误
var (
	// ErrEncode 帧编码失败（通常是 payload 不可序列化）
	ErrEncode = errors.New("codec: encode failed")

	// ErrDecode 帧解码失败
	ErrDecode = errors.New("codec: decode failed")

	// ErrUnknownCodec 未知编解码器
	ErrUnknownCodec = errors.New("codec: unknown codec")
)

// Codec 帧编解码器
type Codec interface {
	// Name 编解码器名称
	Name() string

	// Encode 编码帧
	Encode(f *types.Frame) ([]byte, error)

	// Decode 解码并校验帧
	Decode(data []byte) (*types.Frame, error)
}

var constructors = map[string]func() (Codec, error){
	NameJSON:  func() (Codec, error) { return JSON(), nil },
	NameProto: func() (Codec, error) { return Proto(), nil },
	NameCBOR:  CBOR,
}

// New 按名称创建编解码器
func New(name string) (Codec, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return ctor()
}

// Names 返回所有可用的编解码器名称
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkEncodable 编码前校验帧
func checkEncodable(f *types.Frame) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return nil
}

// checkDecoded 解码后校验帧
func checkDecoded(f *types.Frame) (*types.Frame, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return f, nil
}
