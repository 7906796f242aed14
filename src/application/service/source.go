package service

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	getter "github.com/hashicorp/go-getter/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/domain/repository"
	"github.com/siteworks/prepress/src/infrastructure/persistence"
)

type SourceService interface {
	WithQuerier(config.PgxIface) SourceService

	GetById(uuid.UUID) (*domain.Source, error)
	GetByName(string) (*domain.Source, error)
	GetAll() ([]domain.Source, error)
	Save(*domain.Source) error
	Delete(uuid.UUID) error
	Fetch(context.Context, *domain.Source) (string, error)
}

type sourceService struct {
	logger           zerolog.Logger
	sourceRepository repository.SourceRepository
}

func NewSourceService(db config.PgxIface, logger *zerolog.Logger) SourceService {
	return &sourceService{
		logger:           logger.With().Str("component", "SourceService").Logger(),
		sourceRepository: persistence.NewSourceRepository(db),
	}
}

func (self *sourceService) WithQuerier(querier config.PgxIface) SourceService {
	return &sourceService{
		logger:           self.logger,
		sourceRepository: self.sourceRepository.WithQuerier(querier),
	}
}

func (self *sourceService) GetById(id uuid.UUID) (source *domain.Source, err error) {
	self.logger.Debug().Str("id", id.String()).Msg("Getting Source by ID")
	source, err = self.sourceRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select existing Source with ID %q", id)
	return
}

func (self *sourceService) GetByName(name string) (source *domain.Source, err error) {
	self.logger.Debug().Str("name", name).Msg("Getting Source by name")
	source, err = self.sourceRepository.GetByName(name)
	err = errors.WithMessagef(err, "Could not select existing Source with name %q", name)
	return
}

func (self *sourceService) GetAll() (sources []domain.Source, err error) {
	self.logger.Debug().Msg("Getting all Sources")
	sources, err = self.sourceRepository.GetAll()
	err = errors.WithMessage(err, "Could not select Sources")
	return
}

func (self *sourceService) Save(source *domain.Source) error {
	self.logger.Debug().Str("name", source.Name).Msg("Saving Source")
	if err := self.sourceRepository.Save(source); err != nil {
		return errors.WithMessagef(err, "Could not insert Source %q", source.Name)
	}
	self.logger.Debug().Str("id", source.Id.String()).Msg("Saved Source")
	return nil
}

func (self *sourceService) Delete(id uuid.UUID) error {
	self.logger.Debug().Str("id", id.String()).Msg("Deleting Source")
	return errors.WithMessagef(
		self.sourceRepository.Delete(id),
		"Could not delete Source with ID %q", id,
	)
}

// Fetch downloads the source tree into the cache directory and
// returns the local path. Git sources are updated in place.
func (self *sourceService) Fetch(ctx context.Context, source *domain.Source) (string, error) {
	cacheDir := config.GetenvStr("PREPRESS_CACHE_DIR")
	if cacheDir == "" {
		cacheDir = xdg.CacheHome + "/prepress"
	}
	cacheDir += "/sources"

	dst, err := filepath.Abs(cacheDir + "/" + base64.RawURLEncoding.EncodeToString([]byte(source.Url)))
	if err != nil {
		return "", err
	}

	self.logger.Debug().Str("url", source.Url).Str("dst", dst).Msg("Fetching Source")

	for {
		result, err := getter.GetAny(ctx, dst, source.Url)
		if err != nil {
			// A force-pushed git source cannot be fast-forwarded. Start over.
			if strings.Contains(err.Error(), "git exited with 128: ") && strings.Contains(err.Error(), "fatal: Not possible to fast-forward, aborting.\n\n") {
				if err := os.RemoveAll(dst); err != nil {
					return "", err
				}
				continue
			}
			return "", errors.WithMessagef(err, "Could not fetch Source %q from %q", source.Name, source.Url)
		}
		if result.Dst != dst {
			panic("go-getter did not download to the given directory. This should never happen™")
		}
		break
	}

	return dst, nil
}
