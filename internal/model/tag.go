package model

// Tag lives inside the single tags_list_v2 JSON document in Redis. Names are
// unique within the list.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}
