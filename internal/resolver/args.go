package resolver

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"dex-executor-sol/internal/idl"
)

// EncodeError 数值超出声明位宽。编码失败必须报错，绝不截断。
type EncodeError struct {
	Arg   string
	Width int
	Value *big.Int
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("参数 %s 超出 %d 字节位宽: %s", e.Arg, e.Width, e.Value.String())
}

// Discriminator 指令标识：sha256("global:" + 指令名) 的前 8 字节。
func Discriminator(ixName string) [8]byte {
	h := sha256.Sum256([]byte("global:" + ixName))
	var out [8]byte
	copy(out[:], h[:8])
	return out
}

// EncodeArgs 将指令参数序列化为接收程序期望的二进制布局：
// 8 字节 discriminator + 按声明顺序编码的各参数。
//
// 交易金额写入名称含 amount/lamport/sol/tokens 的参数；名称同时含 min 与 out
// 的最小产出参数恒编码为零——这是刻意的取舍：不依赖账户布局去计算真实下限，
// 链上滑点兜底因此失效，完全依赖链下的 impact 估计。其余参数取类型默认值。
func EncodeArgs(schema *idl.Idl, ix *idl.Instruction, amount *big.Int) ([]byte, error) {
	disc := Discriminator(ix.Name)
	out := make([]byte, 0, 8+16*len(ix.Args))
	out = append(out, disc[:]...)

	for _, arg := range ix.Args {
		nm := strings.ToLower(arg.Name)
		var (
			chunk []byte
			err   error
		)
		switch {
		case strings.Contains(nm, "min") && strings.Contains(nm, "out"):
			chunk, err = encodeIntegerArg(arg, big.NewInt(0))
		case strings.Contains(nm, "amount") || strings.Contains(nm, "lamport") ||
			strings.Contains(nm, "sol") || strings.Contains(nm, "tokens"):
			chunk, err = encodeIntegerArg(arg, amount)
		default:
			chunk = defaultBytes(schema, arg.Type)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func encodeIntegerArg(arg idl.Arg, v *big.Int) ([]byte, error) {
	width := integerWidth(arg.Type)
	return EncodeUint(arg.Name, v, width)
}

// EncodeIntegerArg 按参数声明位宽编码整数，供 venue 级定制编码器使用。
func EncodeIntegerArg(arg idl.Arg, v *big.Int) ([]byte, error) {
	return encodeIntegerArg(arg, v)
}

// DefaultBytes 指定类型的默认值编码。
func DefaultBytes(schema *idl.Idl, t idl.Type) []byte {
	return defaultBytes(schema, t)
}

// integerWidth 声明类型对应的整数字节宽度，未知类型按 u64 处理。
func integerWidth(t idl.Type) int {
	name := t.Name
	if name == "" && t.Defined != "" {
		name = t.Defined
	}
	switch name {
	case "u8", "i8", "bool":
		return 1
	case "u16", "i16":
		return 2
	case "u32", "i32":
		return 4
	case "u128", "i128":
		return 16
	default:
		return 8
	}
}

// EncodeUint 定宽小端编码。v ∉ [0, 2^(8*width)) 时返回 EncodeError。
func EncodeUint(argName string, v *big.Int, width int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, &EncodeError{Arg: argName, Width: width, Value: v}
	}
	if v.BitLen() > width*8 {
		return nil, &EncodeError{Arg: argName, Width: width, Value: v}
	}
	out := make([]byte, width)
	v.FillBytes(out)
	// FillBytes 产出大端，反转为小端
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DecodeUint 小端解码，与 EncodeUint 互逆。
func DecodeUint(b []byte) *big.Int {
	buf := make([]byte, len(b))
	for i := range b {
		buf[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(buf)
}

// defaultBytes 非金额参数的类型默认值：option 为 None、vec/string 为空、
// 定长数组逐元素递归，未知 defined 类型退化为零字节。
func defaultBytes(schema *idl.Idl, t idl.Type) []byte {
	switch t.Name {
	case "bool", "u8", "i8":
		return make([]byte, 1)
	case "u16", "i16":
		return make([]byte, 2)
	case "u32", "i32":
		return make([]byte, 4)
	case "u64", "i64":
		return make([]byte, 8)
	case "u128", "i128":
		return make([]byte, 16)
	case "publicKey":
		return make([]byte, 32)
	case "string", "bytes":
		return u32le(0)
	}
	if t.Option != nil {
		return []byte{0} // None
	}
	if t.Vec != nil {
		return u32le(0) // 空向量
	}
	if t.Array != nil {
		out := make([]byte, 0, t.ArrayLen)
		for i := 0; i < t.ArrayLen; i++ {
			out = append(out, defaultBytes(schema, *t.Array)...)
		}
		return out
	}
	if t.Defined != "" {
		if strings.HasPrefix(strings.ToLower(t.Defined), "option") {
			return []byte{0}
		}
		return nil
	}
	return nil
}

func u32le(n uint32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, n)
	return out
}
