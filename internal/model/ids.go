package model

import (
	"encoding/json"
	"strconv"
)

// IDList 用户 ID 列表，JSON 中以字符串数组表示，避免前端精度丢失
type IDList []int64

// MarshalJSON 实现 json.Marshaler
func (l IDList) MarshalJSON() ([]byte, error) {
	out := make([]string, len(l))
	for i, id := range l {
		out[i] = strconv.FormatInt(id, 10)
	}
	return json.Marshal(out)
}

// UnmarshalJSON 同时接受字符串与数字
func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ids := make(IDList, 0, len(raw))
	for _, n := range raw {
		id, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	*l = ids
	return nil
}

// Unique 去重并保持首次出现的顺序
func (l IDList) Unique() IDList {
	seen := make(map[int64]struct{}, len(l))
	out := make(IDList, 0, len(l))
	for _, id := range l {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
