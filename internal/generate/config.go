package generate

// Config holds configuration for a generated dataset.
type Config struct {
	OutputDir   string  // Directory receiving the dataset files
	Sessions    int     // Number of sessions to generate
	Users       int     // Size of the player pool
	TeamSize    int     // Players per team
	Seed        uint64  // Seed of the random source; equal seeds give equal datasets
	SessionBase uint64  // First session id; 0 derives one from the run id
	StartMillis uint64  // Commit time of the first session
	NewbieShare float64 // Share of sessions played in the newbie mode
	SkillSpread float64 // Standard deviation of hidden skill
}

// Stats holds generation statistics.
type Stats struct {
	RunID      string
	Sessions   int
	Rows       int
	Victories1 int
	FirstID    uint64
	LastID     uint64
}

// Paths lists the files a run writes.
type Paths struct {
	Stream        string
	UserTeam      string
	SessionMode   string
	Registrations string
}
