package idl

import (
	"encoding/json"
	"fmt"
)

// Idl 描述目标程序的指令/账户 schema。链上账户布局对外不透明，
// 全部结构信息来自这份声明式描述。
type Idl struct {
	Address      string        `json:"address"`
	Instructions []Instruction `json:"instructions"`
	Accounts     []AccountDef  `json:"accounts"`
	Types        []TypeDef     `json:"types"`
}

// Instruction 单条指令 schema：有序账户角色 + 有序参数
type Instruction struct {
	Name     string        `json:"name"`
	Accounts []AccountRole `json:"accounts"`
	Args     []Arg         `json:"args"`
}

// AccountRole 指令中的一个账户角色。Address 为 schema 固定地址；
// PDA 为派生规则；两者都缺省时由 resolver 按语义名称兜底。
type AccountRole struct {
	Name     string
	Signer   bool
	Writable bool
	Address  string
	PDA      *PdaSpec
}

// 新旧两代 schema 对 signer/writable 的字段名不同（isSigner/isMut 与 signer/writable），两者都接受。
func (a *AccountRole) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string   `json:"name"`
		Signer   bool     `json:"signer"`
		IsSigner bool     `json:"isSigner"`
		Writable bool     `json:"writable"`
		IsMut    bool     `json:"isMut"`
		Address  string   `json:"address"`
		PDA      *PdaSpec `json:"pda"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Name = raw.Name
	a.Signer = raw.Signer || raw.IsSigner
	a.Writable = raw.Writable || raw.IsMut
	a.Address = raw.Address
	a.PDA = raw.PDA
	return nil
}

// PdaSpec 哈希派生规则：种子列表 + 可选的归属程序
type PdaSpec struct {
	Seeds   []Seed `json:"seeds"`
	Program *Seed  `json:"program"`
}

// Seed 派生种子。Kind 为 const 时 Value 有效；为 account 时 Path 指向
// 其他账户角色（或其解码字段，如 "bonding_curve.creator"）。
type Seed struct {
	Kind  string
	Value []byte
	Path  string
}

func (s *Seed) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
		Path  string          `json:"path"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Kind = raw.Kind
	s.Path = raw.Path
	if len(raw.Value) == 0 {
		return nil
	}
	// const 种子的取值既可能是字符串也可能是字节数组
	var str string
	if err := json.Unmarshal(raw.Value, &str); err == nil {
		s.Value = []byte(str)
		return nil
	}
	var nums []int
	if err := json.Unmarshal(raw.Value, &nums); err == nil {
		b := make([]byte, len(nums))
		for i, n := range nums {
			if n < 0 || n > 255 {
				return fmt.Errorf("seed value 字节越界: %d", n)
			}
			b[i] = byte(n)
		}
		s.Value = b
		return nil
	}
	return fmt.Errorf("seed value 既不是字符串也不是字节数组: %s", string(raw.Value))
}

// Arg 指令参数：名称 + 类型
type Arg struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Type 参数/字段类型。Name 非空时为原语类型名；否则为复合类型之一。
type Type struct {
	Name     string
	Option   *Type
	Vec      *Type
	Array    *Type
	ArrayLen int
	Defined  string
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		t.Name = normalizeTypeName(name)
		return nil
	}
	var raw struct {
		Option  *Type           `json:"option"`
		Vec     *Type           `json:"vec"`
		Array   []json.RawMessage `json:"array"`
		Defined json.RawMessage `json:"defined"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("无法解析类型: %s", string(data))
	}
	t.Option = raw.Option
	t.Vec = raw.Vec
	if len(raw.Array) == 2 {
		var elem Type
		if err := json.Unmarshal(raw.Array[0], &elem); err != nil {
			return err
		}
		var n int
		if err := json.Unmarshal(raw.Array[1], &n); err != nil {
			return err
		}
		t.Array = &elem
		t.ArrayLen = n
	}
	if len(raw.Defined) > 0 {
		// 新 schema 写作 {defined:{name:"X"}}，旧 schema 写作 {defined:"X"}
		var definedName string
		if err := json.Unmarshal(raw.Defined, &definedName); err == nil {
			t.Defined = definedName
		} else {
			var obj struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw.Defined, &obj); err != nil {
				return fmt.Errorf("无法解析 defined 类型: %s", string(raw.Defined))
			}
			t.Defined = obj.Name
		}
	}
	return nil
}

func normalizeTypeName(name string) string {
	if name == "pubkey" || name == "publicKey" {
		return "publicKey"
	}
	return name
}

// AccountDef 账户定义。旧 schema 直接内嵌布局；新 schema 布局在 Types 中同名给出。
type AccountDef struct {
	Name string      `json:"name"`
	Type *StructType `json:"type"`
}

type TypeDef struct {
	Name string      `json:"name"`
	Type *StructType `json:"type"`
}

type StructType struct {
	Kind   string  `json:"kind"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Instruction 按名称查找指令，找不到时报 schema 错误。
func (i *Idl) Instruction(name string) (*Instruction, error) {
	for idx := range i.Instructions {
		if i.Instructions[idx].Name == name {
			return &i.Instructions[idx], nil
		}
	}
	return nil, fmt.Errorf("schema 中没有指令 %q", name)
}

// StructFor 查找账户的字段布局：优先账户内嵌定义，其次同名类型定义。
func (i *Idl) StructFor(accountName string) *StructType {
	for idx := range i.Accounts {
		if i.Accounts[idx].Name == accountName && i.Accounts[idx].Type != nil {
			return i.Accounts[idx].Type
		}
	}
	for idx := range i.Types {
		if i.Types[idx].Name == accountName && i.Types[idx].Type != nil {
			return i.Types[idx].Type
		}
	}
	return nil
}

// FixedSize 返回定长类型的字节数。变长类型（string/bytes/vec/option）返回 false。
func (i *Idl) FixedSize(t Type) (int, bool) {
	switch t.Name {
	case "bool", "u8", "i8":
		return 1, true
	case "u16", "i16":
		return 2, true
	case "u32", "i32", "f32":
		return 4, true
	case "u64", "i64", "f64":
		return 8, true
	case "u128", "i128":
		return 16, true
	case "publicKey":
		return 32, true
	case "string", "bytes":
		return 0, false
	}
	if t.Array != nil {
		elem, ok := i.FixedSize(*t.Array)
		if !ok {
			return 0, false
		}
		return elem * t.ArrayLen, true
	}
	if t.Defined != "" {
		st := i.StructFor(t.Defined)
		if st == nil {
			return 0, false
		}
		total := 0
		for _, f := range st.Fields {
			n, ok := i.FixedSize(f.Type)
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	}
	return 0, false
}

// FieldBytes 按 schema 布局从账户原始数据中切出指定字段的字节。
// 跳过 8 字节账户判别符后沿定长字段累加偏移；目标字段之前出现变长字段时报错，
// 由调用方退回固定偏移读取。
func (i *Idl) FieldBytes(accountName, fieldName string, data []byte) ([]byte, error) {
	st := i.StructFor(accountName)
	if st == nil {
		return nil, fmt.Errorf("schema 中没有账户布局 %q", accountName)
	}
	offset := 8 // account discriminator
	for _, f := range st.Fields {
		size, ok := i.FixedSize(f.Type)
		if !ok {
			return nil, fmt.Errorf("账户 %s 的字段 %s 之前存在变长字段 %s", accountName, fieldName, f.Name)
		}
		if f.Name == fieldName {
			if len(data) < offset+size {
				return nil, fmt.Errorf("账户 %s 数据过短: len=%d need=%d", accountName, len(data), offset+size)
			}
			return data[offset : offset+size], nil
		}
		offset += size
	}
	return nil, fmt.Errorf("账户 %s 没有字段 %q", accountName, fieldName)
}
