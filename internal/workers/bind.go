package workers

import (
	"fmt"

	"contentfactory/internal/registry"
	"contentfactory/internal/stage"
)

// All constructs every worker keyed by id.
func All(deps Deps) map[string]stage.Worker {
	return map[string]stage.Worker{
		"topic-manager":     NewTopicManager(deps),
		"content-generator": NewContentGenerator(deps),
		"gutenberg-builder": NewGutenbergBuilder(deps),
		"translator":        NewTranslator(deps),
		"media-processor":   NewMediaProcessor(deps),
		"social-publisher":  NewSocialPublisher(deps),
		"podcast-producer":  NewPodcastProducer(deps),
		"seo-optimizer":     NewSEOOptimizer(deps),
	}
}

// Bind attaches an implementation to every worker the registry declares.
// A declared worker without an implementation is an error.
func Bind(reg *registry.Registry, deps Deps) error {
	impls := All(deps)
	for _, def := range reg.Definitions() {
		impl, ok := impls[def.ID]
		if !ok {
			return fmt.Errorf("worker %q is declared in the manifest but has no implementation", def.ID)
		}
		if err := reg.Bind(def.ID, impl); err != nil {
			return err
		}
	}
	return nil
}
