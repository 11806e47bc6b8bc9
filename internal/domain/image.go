package domain

// ImageRole classifies an accepted image's position within its item.
type ImageRole string

// Image roles.
const (
	RolePrimary ImageRole = "primary"
	RoleDetail  ImageRole = "detail"
)

// ImageHashes carries the content fingerprints of one image: an exact
// digest of the raw bytes plus the perceptual hash variants. Two images are
// near-duplicates only when every perceptual variant is within the
// configured Hamming distance - a single noisy hash must not cause a false
// positive.
type ImageHashes struct {
	// ImageID is set when the hashes belong to an already accepted image.
	ImageID string `json:"image_id,omitempty"`

	// ByteHash is the hex SHA-256 of the raw bytes (the cheap exact path).
	ByteHash string `json:"byte_hash"`

	// AHash and DHash are 64-bit perceptual hashes (average and difference).
	AHash uint64 `json:"ahash"`
	DHash uint64 `json:"dhash"`
}

// ImageCandidate is one fetched image on its way through dedup and the
// quality gate. It exists only for the duration of a fetch attempt: rejected
// candidates are discarded with their bytes, accepted ones are promoted to
// an AcceptedImage.
type ImageCandidate struct {
	SourceURL   string
	Source      string
	OwnerItemID string

	// Bytes holds the raw download. Transient; never persisted.
	Bytes []byte

	Hashes   ImageHashes
	Width    int
	Height   int
	ByteSize int64
}

// AcceptedImage is the persisted record of an image that passed dedup and
// the quality gate.
//
// Invariant: no two accepted images of the same item have perceptual hashes
// within the duplicate threshold of each other on all variants.
type AcceptedImage struct {
	Tracked
	ItemID    string      `json:"item_id"`
	SourceURL string      `json:"source_url"`
	Source    string      `json:"source,omitempty"`
	Hashes    ImageHashes `json:"hashes"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	ByteSize  int64       `json:"byte_size"`
	Role      ImageRole   `json:"role"`

	// StorageRef is the external object id in the storage sink. Empty when
	// the upload failed after retries; a later repair pass can retry it.
	StorageRef string `json:"storage_ref,omitempty"`

	// BlurHash is a compact placeholder representation for clients.
	BlurHash string `json:"blurhash,omitempty"`
}
