package model

import "time"

// Site is a row of the network's blogs table.
type Site struct {
	BlogID      int64     `gorm:"column:blog_id;primaryKey;autoIncrement" json:"blogId"`
	SiteID      int64     `gorm:"column:site_id" json:"siteId"`
	Domain      string    `gorm:"column:domain;size:200" json:"domain"`
	Path        string    `gorm:"column:path;size:100" json:"path"`
	Registered  time.Time `gorm:"column:registered" json:"registered"`
	LastUpdated time.Time `gorm:"column:last_updated" json:"lastUpdated"`
	Public      int       `gorm:"column:public" json:"public"`
	Archived    int       `gorm:"column:archived" json:"archived"`
	Mature      int       `gorm:"column:mature" json:"mature"`
	Spam        int       `gorm:"column:spam" json:"spam"`
	Deleted     int       `gorm:"column:deleted" json:"deleted"`
	LangID      int       `gorm:"column:lang_id" json:"langId"`
}

// Option is a row of a tenant's options table.
type Option struct {
	OptionID    int64  `gorm:"column:option_id;primaryKey;autoIncrement"`
	OptionName  string `gorm:"column:option_name"`
	OptionValue string `gorm:"column:option_value"`
	Autoload    string `gorm:"column:autoload"`
}

// User is the subset of the global users table the cloner reads.
type User struct {
	ID        int64  `gorm:"column:ID;primaryKey"`
	UserLogin string `gorm:"column:user_login"`
	UserEmail string `gorm:"column:user_email"`
}

// UserMeta is a row of the global usermeta table.
type UserMeta struct {
	UMetaID   int64  `gorm:"column:umeta_id;primaryKey;autoIncrement"`
	UserID    int64  `gorm:"column:user_id"`
	MetaKey   string `gorm:"column:meta_key"`
	MetaValue string `gorm:"column:meta_value"`
}

// BlogMeta is a row of the global blogmeta table.
type BlogMeta struct {
	MetaID    int64  `gorm:"column:meta_id;primaryKey;autoIncrement"`
	BlogID    int64  `gorm:"column:blog_id"`
	MetaKey   string `gorm:"column:meta_key"`
	MetaValue string `gorm:"column:meta_value"`
}

// NetworkMeta is a row of the network-wide sitemeta table.
type NetworkMeta struct {
	MetaID    int64  `gorm:"column:meta_id;primaryKey;autoIncrement"`
	SiteID    int64  `gorm:"column:site_id"`
	MetaKey   string `gorm:"column:meta_key"`
	MetaValue string `gorm:"column:meta_value"`
}
