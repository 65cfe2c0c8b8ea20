package shaders

import (
	_ "embed"
)

//go:embed hiz_seed.wgsl
var HiZSeedWGSL string

//go:embed hiz_reduce.wgsl
var HiZReduceWGSL string

//go:embed cull.wgsl
var CullWGSL string

//go:embed draw.wgsl
var DrawWGSL string
