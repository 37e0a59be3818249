package anthropic

// BuildCachedSystemBlocks constructs a system content block with a 5-minute
// cache breakpoint. Questions asked against the same documents within the
// window read the context from the prompt cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}
