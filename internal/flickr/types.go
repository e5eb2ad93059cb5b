package flickr

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexInt accepts both 12 and "12"; Flickr is not consistent about numeric fields.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	*n = flexInt(v)
	return nil
}

type content struct {
	Content string `json:"_content"`
}

type PhotoSet struct {
	ID         string  `json:"id"`
	Title      content `json:"title"`
	Photos     flexInt `json:"photos"`
	DateCreate string  `json:"date_create"`
}

func (s PhotoSet) TitleText() string { return s.Title.Content }
func (s PhotoSet) PhotoCount() int   { return int(s.Photos) }

type Photo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	DateTaken  string `json:"datetaken"`
	DateUpload string `json:"dateupload"`
	Tags       string `json:"tags"`

	URLO string `json:"url_o"`
	URLK string `json:"url_k"`
	URLH string `json:"url_h"`
	URLL string `json:"url_l"`
	URLC string `json:"url_c"`
	URLZ string `json:"url_z"`

	WidthO  flexInt `json:"width_o"`
	HeightO flexInt `json:"height_o"`
	WidthK  flexInt `json:"width_k"`
	HeightK flexInt `json:"height_k"`
	WidthH  flexInt `json:"width_h"`
	HeightH flexInt `json:"height_h"`
	WidthL  flexInt `json:"width_l"`
	HeightL flexInt `json:"height_l"`
	WidthC  flexInt `json:"width_c"`
	HeightC flexInt `json:"height_c"`
	WidthZ  flexInt `json:"width_z"`
	HeightZ flexInt `json:"height_z"`
}

type envelope struct {
	Stat    string `json:"stat"`
	Message string `json:"message"`
}

type paging struct {
	Page  flexInt `json:"page"`
	Pages flexInt `json:"pages"`
}

type setListResponse struct {
	envelope
	PhotoSets struct {
		paging
		PhotoSet []PhotoSet `json:"photoset"`
	} `json:"photosets"`
}

type setPhotosResponse struct {
	envelope
	PhotoSet struct {
		paging
		Photo []Photo `json:"photo"`
	} `json:"photoset"`
}

var _ json.Unmarshaler = (*flexInt)(nil)
