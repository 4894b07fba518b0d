package normalize

import "github.com/rotisserie/eris"

var errUnparseableFile = eris.New("normalize: output file is not JSON")
