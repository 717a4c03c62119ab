package domain

// TextureModel selects the arm rendering model for a skin.
type TextureModel string

const (
	ModelDefault TextureModel = "default"
	ModelSlim    TextureModel = "slim"
)

// PlayerProfile is a player identity. IDs are undashed lowercase UUID hex,
// the form the wire protocol uses.
type PlayerProfile struct {
	ID       string
	UserID   string
	Name     string // globally unique
	Model    TextureModel
	SkinHash *string // content hash into the texture blob store
	CapeHash *string
}
