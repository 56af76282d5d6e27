package model

import (
	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/pkg/db"
	"github.com/thep200/github-cataloguer/pkg/log"
)

type Model struct {
	Config *cfg.Config `gorm:"-"`
	Logger log.Logger  `gorm:"-"`
	Mysql  *db.Mysql   `gorm:"-"`
}
