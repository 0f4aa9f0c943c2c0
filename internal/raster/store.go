package raster

// Store reads and writes grids by path.
type Store interface {
	Read(path string) (*Grid, error)
	Write(path string, g *Grid) error
	Exists(path string) bool
}
