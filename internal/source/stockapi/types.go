package stockapi

// Raw API response types (internal)

type searchResponse struct {
	Products []rawProduct `json:"products"`
	Total    int          `json:"total"`
}

type rawProduct struct {
	Title       string   `json:"title"`
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Colorway    string   `json:"colorway"`
	StyleID     string   `json:"style_id"`
	Description string   `json:"description"`
	Currency    string   `json:"currency"`
	ReleaseDate string   `json:"release_date"`
	Media       rawMedia `json:"media"`
	RetailPrice float64  `json:"retail_price"`
}

type rawMedia struct {
	ImageURL    string   `json:"image_url"`
	GalleryURLs []string `json:"gallery_urls"`
}
