package projects

type CreateRequest struct {
	TownID      string `json:"townId"`
	Year        int    `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type UpdateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

type CaptionRequest struct {
	Caption string `json:"caption"`
}

type ReorderRequest struct {
	PhotoIDs []string `json:"photoIds"`
}

type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

type MoveRequest struct {
	Direction Direction `json:"direction"`
}
