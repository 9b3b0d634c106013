package mesa

// Version is the release of the mesa module.
const Version = "0.1.0"
