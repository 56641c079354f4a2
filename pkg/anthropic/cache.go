package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. Every page of a document shares the same system prompt, so
// after the first page the prompt is read from cache.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}
